package memory

import (
	"fmt"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
)

// table 已提交的一张表，读写由 Store.mu 保护
type table[T any] struct {
	name    string
	rows    map[uint64]*T
	byKey   map[string]uint64
	id      func(*T) uint64
	clone   func(*T) *T
	key     func(*T) string
	version func(*T) int64
	bump    func(*T)
}

func newTable[T any](name string, id func(*T) uint64, clone func(*T) *T) *table[T] {
	return &table[T]{
		name:  name,
		rows:  make(map[uint64]*T),
		byKey: make(map[string]uint64),
		id:    id,
		clone: clone,
	}
}

func (t *table[T]) withKey(key func(*T) string) *table[T] {
	t.key = key
	return t
}

func (t *table[T]) withVersion(version func(*T) int64, bump func(*T)) *table[T] {
	t.version = version
	t.bump = bump
	return t
}

// staged 事务内对一张表的写集合
type staged[T any] struct {
	base     *table[T]
	puts     map[uint64]*T
	created  map[uint64]bool
	expected map[uint64]int64
}

func newStaged[T any](base *table[T]) *staged[T] {
	return &staged[T]{
		base:     base,
		puts:     make(map[uint64]*T),
		created:  make(map[uint64]bool),
		expected: make(map[uint64]int64),
	}
}

func (s *staged[T]) current(id uint64) *T {
	if v, ok := s.puts[id]; ok {
		return v
	}
	return s.base.rows[id]
}

func (s *staged[T]) get(id uint64) *T {
	if v := s.current(id); v != nil {
		return s.base.clone(v)
	}
	return nil
}

func (s *staged[T]) getByKey(k string) *T {
	for _, v := range s.puts {
		if s.base.key(v) == k {
			return s.base.clone(v)
		}
	}
	if id, ok := s.base.byKey[k]; ok {
		return s.get(id)
	}
	return nil
}

func (s *staged[T]) list(keep func(*T) bool) []*T {
	var res []*T
	for id, v := range s.base.rows {
		if p, ok := s.puts[id]; ok {
			v = p
		}
		if keep(v) {
			res = append(res, s.base.clone(v))
		}
	}
	for id := range s.created {
		if v := s.puts[id]; keep(v) {
			res = append(res, s.base.clone(v))
		}
	}
	return res
}

func (s *staged[T]) insert(v *T) error {
	id := s.base.id(v)
	if s.current(id) != nil {
		return fmt.Errorf("%s %d: %w", s.base.name, id, dal.ErrDuplicate)
	}
	if s.base.key != nil && s.getByKey(s.base.key(v)) != nil {
		return fmt.Errorf("%s %s: %w", s.base.name, s.base.key(v), dal.ErrDuplicate)
	}
	s.puts[id] = s.base.clone(v)
	s.created[id] = true
	return nil
}

// update 写回已存在的行；带版本的表要求调用方持有最新版本
func (s *staged[T]) update(v *T) error {
	id := s.base.id(v)
	cur := s.current(id)
	if cur == nil {
		return fmt.Errorf("%s %d not found", s.base.name, id)
	}
	if s.base.version != nil {
		if s.base.version(cur) != s.base.version(v) {
			return errs.New(errs.Contention, fmt.Sprintf("%s %d modified concurrently", s.base.name, id))
		}
		if _, seen := s.expected[id]; !seen && !s.created[id] {
			s.expected[id] = s.base.version(cur)
		}
		s.base.bump(v)
	}
	s.puts[id] = s.base.clone(v)
	return nil
}

// validate 提交前在写锁内校验唯一键与版本
func (s *staged[T]) validate() error {
	for id := range s.created {
		if _, ok := s.base.rows[id]; ok {
			return fmt.Errorf("%s %d: %w", s.base.name, id, dal.ErrDuplicate)
		}
		if s.base.key != nil {
			if _, ok := s.base.byKey[s.base.key(s.puts[id])]; ok {
				return fmt.Errorf("%s %s: %w", s.base.name, s.base.key(s.puts[id]), dal.ErrDuplicate)
			}
		}
	}
	for id, want := range s.expected {
		if row, ok := s.base.rows[id]; !ok || s.base.version(row) != want {
			return errs.New(errs.Contention, fmt.Sprintf("%s %d modified concurrently", s.base.name, id))
		}
	}
	return nil
}

func (s *staged[T]) apply() {
	for id, v := range s.puts {
		s.base.rows[id] = v
		if s.base.key != nil {
			s.base.byKey[s.base.key(v)] = id
		}
	}
}
