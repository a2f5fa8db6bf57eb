package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"dnasigil/internal/model"
)

const exportIndexFile = "export_index.json"

const (
	entityFile      = "entity.json"
	genomeFile      = "genome.json"
	signatureFile   = "signature.json"
	evolutionFile   = "evolution_history.json"
	healingFile     = "healing_history.json"
	interactionFile = "interaction_history.json"
	fitnessFile     = "fitness_series.csv"
)

// Dossier is everything persisted about one encoded entity.
type Dossier struct {
	Entity       model.EncodedEntity      `json:"entity"`
	Evolution    []model.EvolutionEvent   `json:"evolution"`
	Healing      []model.HealingEvent     `json:"healing"`
	Interactions []model.InteractionEvent `json:"interactions"`
}

type ExportIndexEntry struct {
	EntityID         string `json:"entity_id"`
	OriginalEntityID string `json:"original_entity_id"`
	Generation       int    `json:"generation"`
	HealingCount     int    `json:"healing_count"`
	Interactions     int    `json:"interactions"`
	ExportedAtUTC    string `json:"exported_at_utc"`
}

// WriteDossier writes d under baseDir/<entity id> and records it in the
// export index. It returns the dossier directory.
func WriteDossier(baseDir string, d Dossier, exportedAt time.Time) (string, error) {
	if d.Entity.ID == "" {
		return "", fmt.Errorf("entity id is required")
	}

	dir := filepath.Join(baseDir, d.Entity.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	files := []struct {
		name  string
		value any
	}{
		{entityFile, d.Entity},
		{genomeFile, d.Entity.Genome},
		{signatureFile, d.Entity.Signature},
		{evolutionFile, nonNil(d.Evolution)},
		{healingFile, nonNil(d.Healing)},
		{interactionFile, nonNil(d.Interactions)},
	}
	for _, f := range files {
		if err := writeJSON(filepath.Join(dir, f.name), f.value); err != nil {
			return "", err
		}
	}
	if err := writeFitnessSeries(filepath.Join(dir, fitnessFile), d.Evolution); err != nil {
		return "", err
	}

	entry := ExportIndexEntry{
		EntityID:         d.Entity.ID,
		OriginalEntityID: d.Entity.OriginalEntityID,
		Generation:       d.Entity.EvolutionGeneration,
		HealingCount:     d.Entity.HealingCount,
		Interactions:     len(d.Interactions),
		ExportedAtUTC:    exportedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := AppendExportIndex(baseDir, entry); err != nil {
		return "", err
	}
	return dir, nil
}

// ReadDossier loads a directory written by WriteDossier.
func ReadDossier(dir string) (Dossier, error) {
	var d Dossier
	for _, f := range []struct {
		name   string
		target any
	}{
		{entityFile, &d.Entity},
		{evolutionFile, &d.Evolution},
		{healingFile, &d.Healing},
		{interactionFile, &d.Interactions},
	} {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return Dossier{}, err
		}
		if err := json.Unmarshal(data, f.target); err != nil {
			return Dossier{}, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	return d, nil
}

// AppendExportIndex inserts or replaces the entry for entry.EntityID.
func AppendExportIndex(baseDir string, entry ExportIndexEntry) error {
	if entry.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListExportIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].EntityID == entry.EntityID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, exportIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, exportIndexFile), index)
}

// ListExportIndex returns index entries newest first.
func ListExportIndex(baseDir string) ([]ExportIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, exportIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []ExportIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []ExportIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ExportedAtUTC > entries[j].ExportedAtUTC
	})
	return entries, nil
}

func writeFitnessSeries(path string, history []model.EvolutionEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"generation", "fitness_before", "fitness_after", "improvement", "timestamp"}); err != nil {
		return err
	}
	for _, e := range history {
		row := []string{
			strconv.Itoa(e.Generation),
			strconv.FormatFloat(e.FitnessBefore, 'f', 6, 64),
			strconv.FormatFloat(e.FitnessAfter, 'f', 6, 64),
			strconv.FormatFloat(e.FitnessImprovement, 'f', 6, 64),
			e.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
