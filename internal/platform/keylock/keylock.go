// Package keylock は従業員単位の直列化に使うキー付きミューテックスを提供する。
// 同一従業員の打刻・承認・異議処理は必ず同じキーで排他し、
// 別従業員同士は一切ブロックしない。
package keylock

import "sync"

type entry struct {
	mu  sync.Mutex
	ref int
}

type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Lock はキーに対応するロックを取得し、解放用のクロージャを返す。
// 使い方: unlock := kl.Lock(key); defer unlock()
func (k *KeyLock) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.ref++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.ref--
		if e.ref == 0 {
			// 待機者がいなければエントリを回収（キー数は従業員数に比例させない）
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
