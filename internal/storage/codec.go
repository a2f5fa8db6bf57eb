package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"dnasigil/internal/model"
)

const (
	CurrentSchemaVersion = model.CurrentSchemaVersion
	CurrentCodecVersion  = model.CurrentCodecVersion
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeEntity(e model.EncodedEntity) ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEntity(data []byte) (model.EncodedEntity, error) {
	var entity model.EncodedEntity
	if err := json.Unmarshal(data, &entity); err != nil {
		return model.EncodedEntity{}, err
	}
	if err := checkVersion(entity.VersionedRecord); err != nil {
		return model.EncodedEntity{}, err
	}
	return entity, nil
}

func EncodeGenome(g model.Genome) ([]byte, error) {
	return json.Marshal(g)
}

func DecodeGenome(data []byte) (model.Genome, error) {
	var genome model.Genome
	if err := json.Unmarshal(data, &genome); err != nil {
		return model.Genome{}, err
	}
	if err := checkVersion(genome.VersionedRecord); err != nil {
		return model.Genome{}, err
	}
	return genome, nil
}

func EncodeSignature(s model.Signature) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSignature(data []byte) (model.Signature, error) {
	var signature model.Signature
	if err := json.Unmarshal(data, &signature); err != nil {
		return model.Signature{}, err
	}
	if err := checkVersion(signature.VersionedRecord); err != nil {
		return model.Signature{}, err
	}
	return signature, nil
}

func EncodeEvolutionEvent(e model.EvolutionEvent) ([]byte, error) {
	return json.Marshal(e)
}

func EncodeHealingEvent(e model.HealingEvent) ([]byte, error) {
	return json.Marshal(e)
}

func EncodeInteractionEvent(e model.InteractionEvent) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvolutionHistory decodes list entries in order. Any entry with an
// unknown version fails the whole history.
func DecodeEvolutionHistory(items [][]byte) ([]model.EvolutionEvent, error) {
	return decodeHistory(items, func(e model.EvolutionEvent) model.VersionedRecord { return e.VersionedRecord })
}

func DecodeHealingHistory(items [][]byte) ([]model.HealingEvent, error) {
	return decodeHistory(items, func(e model.HealingEvent) model.VersionedRecord { return e.VersionedRecord })
}

func DecodeInteractionHistory(items [][]byte) ([]model.InteractionEvent, error) {
	return decodeHistory(items, func(e model.InteractionEvent) model.VersionedRecord { return e.VersionedRecord })
}

func decodeHistory[T any](items [][]byte, version func(T) model.VersionedRecord) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, data := range items {
		var event T
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("history entry %d: %w", i, err)
		}
		if err := checkVersion(version(event)); err != nil {
			return nil, fmt.Errorf("history entry %d: %w", i, err)
		}
		out = append(out, event)
	}
	return out, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
