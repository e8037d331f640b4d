// Copyright 2024 The vrrb-core Authors
// This file is part of the vrrb-core library.
//
// The vrrb-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The vrrb-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the vrrb-core library. If not, see <http://www.gnu.org/licenses/>.

// Package vrrblog provides the module-scoped loggers used across the
// repository. It mirrors the teacher's log.NewModuleLogger registration
// pattern (storage/database/db_manager.go) but is backed by zap instead
// of a hand-rolled log15 fork.
package vrrblog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu      sync.Mutex
	base    *zap.SugaredLogger
	modules = map[string]*zap.SugaredLogger{}
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	base = l.Sugar()
}

// SetDevelopment switches every already-issued and future module logger to
// zap's human-readable development encoder. Intended for cmd/vrrbnode and
// tests.
func SetDevelopment() {
	mu.Lock()
	defer mu.Unlock()
	l, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	base = l.Sugar()
	for name, existing := range modules {
		*existing = *base.Named(name)
	}
}

// NewModuleLogger returns the named logger for module, creating it on first
// use. The same instance is returned on every subsequent call for the same
// name, exactly like the teacher's log.NewModuleLogger.
func NewModuleLogger(module string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := modules[module]; ok {
		return l
	}
	l := base.Named(module)
	modules[module] = l
	return l
}
