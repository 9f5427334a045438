/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"sort"
	"sync"

	"github.com/uptrace/bun"
)

// SQLModel is a bun model known to the registry. Instance returns a struct
// pointer compatible with bun; lower Priority values come first.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry maps model names to models.
type ModelRegistry interface {
	Register(name string, model SQLModel)
	Lookup(name string) (SQLModel, bool)
	Models() []SQLModel
	Names() []string
}

// Models is supplied by the caller of Connect. Init is invoked once with the
// freshly opened session and returns the registry exposed by the ORM.
type Models interface {
	Init(db *bun.DB) (ModelRegistry, error)
}

// ModelsFunc adapts a function to Models.
type ModelsFunc func(db *bun.DB) (ModelRegistry, error)

func (f ModelsFunc) Init(db *bun.DB) (ModelRegistry, error) {
	return f(db)
}

type modelRegistry struct {
	models map[string]SQLModel
	mutex  sync.RWMutex
}

func NewModelRegistry() ModelRegistry {
	return &modelRegistry{
		models: make(map[string]SQLModel),
	}
}

func (r *modelRegistry) Register(name string, model SQLModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models[name] = model
}

func (r *modelRegistry) Lookup(name string) (SQLModel, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns the registered models sorted by ascending priority, ties
// broken by name.
func (r *modelRegistry) Models() []SQLModel {
	names := r.Names()
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	result := make([]SQLModel, 0, len(names))
	for _, name := range names {
		result = append(result, r.models[name])
	}
	return result
}

// Names returns the registered names in the same order as Models.
func (r *modelRegistry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.models[names[i]].Priority(), r.models[names[j]].Priority()
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

type ModelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a struct instance and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &ModelAdapter{
		instance: instance,
		priority: priority,
	}
}

func (a *ModelAdapter) Instance() interface{} {
	return a.instance
}

func (a *ModelAdapter) Priority() int {
	return a.priority
}

// RegisterModels returns a Models that registers every instance of reg with
// the bun session and then hands reg back.
func RegisterModels(reg ModelRegistry) Models {
	return ModelsFunc(func(db *bun.DB) (ModelRegistry, error) {
		models := reg.Models()
		instances := make([]interface{}, len(models))
		for i, m := range models {
			instances[i] = m.Instance()
		}
		if len(instances) > 0 {
			db.RegisterModel(instances...)
		}
		return reg, nil
	})
}
