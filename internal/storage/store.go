package storage

import (
	"context"
	"strings"
)

// Store is the key-value persistence contract the engine writes through.
// Plain values and append-only lists live in separate namespaces, so the same
// key may hold both.
type Store interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	// List returns the values appended under key, oldest first. A key that was
	// never pushed to yields an empty list.
	List(ctx context.Context, key string) ([][]byte, error)
	PushToList(ctx context.Context, key string, value []byte) error
	// All returns every plain value. Lists are not included.
	All(ctx context.Context) (map[string][]byte, error)
	// Commit applies every operation in batch or none of them.
	Commit(ctx context.Context, batch *Batch) error
}

type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
	OpPush
)

type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
}

// Batch collects writes for a single atomic Commit.
type Batch struct {
	ops []Op
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Set(key string, value []byte) *Batch {
	b.ops = append(b.ops, Op{Kind: OpSet, Key: key, Value: value})
	return b
}

func (b *Batch) Delete(key string) *Batch {
	b.ops = append(b.ops, Op{Kind: OpDelete, Key: key})
	return b
}

func (b *Batch) Push(key string, value []byte) *Batch {
	b.ops = append(b.ops, Op{Kind: OpPush, Key: key, Value: value})
	return b
}

func (b *Batch) Ops() []Op {
	if b == nil {
		return nil
	}
	return b.ops
}

func (b *Batch) Len() int {
	return len(b.Ops())
}

const (
	genomePrefix      = "dna:"
	signaturePrefix   = "sigil:"
	evolutionPrefix   = "evo:"
	healingPrefix     = "heal:"
	interactionPrefix = "int:"
)

// EntityKey is the bare encoded-entity id.
func EntityKey(id string) string { return id }

func GenomeKey(originalID string) string    { return genomePrefix + originalID }
func SignatureKey(originalID string) string { return signaturePrefix + originalID }
func EvolutionKey(id string) string         { return evolutionPrefix + id }
func HealingKey(id string) string           { return healingPrefix + id }
func InteractionKey(id string) string       { return interactionPrefix + id }

// IsEntityKey reports whether a plain-value key holds an encoded entity
// rather than a genome or signature.
func IsEntityKey(key string) bool {
	if key == "" {
		return false
	}
	for _, prefix := range []string{genomePrefix, signaturePrefix, evolutionPrefix, healingPrefix, interactionPrefix} {
		if strings.HasPrefix(key, prefix) {
			return false
		}
	}
	return true
}
