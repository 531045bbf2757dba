package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pead-backtest/internal/research/pead"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

// Record is the textual form of an event shared by YAML and CSV input
type Record struct {
	Ticker   string `yaml:"ticker" csv:"ticker"`
	Date     string `yaml:"date" csv:"date"`
	Surprise string `yaml:"surprise" csv:"surprise"`
}

// jsonRecord takes the surprise as a JSON number or numeric string. A
// missing surprise stays empty and is rejected like a blank CSV cell.
type jsonRecord struct {
	Ticker   string      `json:"ticker"`
	Date     string      `json:"date"`
	Surprise json.Number `json:"surprise"`
}

// FromRecords validates records into events. The first invalid record aborts
// the conversion and is reported by position.
func FromRecords(records []Record) ([]pead.EarningsEvent, error) {
	out := make([]pead.EarningsEvent, 0, len(records))
	for i, r := range records {
		ev, err := pead.ParseEvent(r.Ticker, r.Date, r.Surprise)
		if err != nil {
			return nil, pead.WithIndex(err, i)
		}
		out = append(out, ev)
	}
	return out, nil
}

// yamlFile accepts either a bare list or a document with an events key
type yamlFile struct {
	Events []Record `yaml:"events"`
}

// ParseYAML reads events from YAML
func ParseYAML(data []byte) ([]pead.EarningsEvent, error) {
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		var doc yamlFile
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("failed to parse events yaml: %w", err)
		}
		records = doc.Events
	}
	return FromRecords(records)
}

// ParseCSV reads events from CSV with a ticker,date,surprise header
func ParseCSV(data []byte) ([]pead.EarningsEvent, error) {
	var records []Record
	if err := gocsv.UnmarshalBytes(bytes.TrimPrefix(data, []byte("\ufeff")), &records); err != nil {
		return nil, fmt.Errorf("failed to parse events csv: %w", err)
	}
	return FromRecords(records)
}

// ParseJSON reads events from a JSON array or an object with an events key
func ParseJSON(data []byte) ([]pead.EarningsEvent, error) {
	var records []jsonRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var doc struct {
			Events []jsonRecord `json:"events"`
		}
		if err2 := json.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("failed to parse events json: %w", err)
		}
		records = doc.Events
	}

	converted := make([]Record, len(records))
	for i, r := range records {
		converted[i] = Record{Ticker: r.Ticker, Date: r.Date, Surprise: r.Surprise.String()}
	}
	return FromRecords(converted)
}

// LoadFile reads events from a .yaml, .yml, .csv or .json file
func LoadFile(path string) ([]pead.EarningsEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported events file type %q", filepath.Ext(path))
	}
}
