// Package manifest reads the CSV list of image locators and labels.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

// marker is the path segment that precedes the asset identifier
const marker = "photos"

// Entry is one usable manifest row
type Entry struct {
	Locator string
	Label   string
	// Line is the 1-based CSV record number, header included
	Line int
}

// HeaderPolicy decides what happens to the first record
type HeaderPolicy string

const (
	// HeaderAuto skips the first record when its locator does not parse
	HeaderAuto HeaderPolicy = config.HeaderAuto
	// HeaderAlways always skips the first record
	HeaderAlways HeaderPolicy = config.HeaderAlways
	// HeaderNever treats the first record as data
	HeaderNever HeaderPolicy = config.HeaderNever
)

// ParseHeaderPolicy validates a policy name; empty means auto
func ParseHeaderPolicy(s string) (HeaderPolicy, error) {
	switch p := HeaderPolicy(strings.ToLower(s)); p {
	case "":
		return HeaderAuto, nil
	case HeaderAuto, HeaderAlways, HeaderNever:
		return p, nil
	default:
		return "", fmt.Errorf("invalid header policy %q (want auto, always or never)", s)
	}
}

// ExtractAssetID returns the path segment following "photos" in locator
func ExtractAssetID(locator string) (string, error) {
	parts := strings.Split(strings.Trim(locator, "/"), "/")
	for i, part := range parts {
		if part != marker {
			continue
		}
		if i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
		break
	}
	return "", errs.New(errs.ErrorTypeLocator, fmt.Sprintf("no asset id in locator %q", locator))
}

// Read parses manifest records from r. Records with fewer than two fields or an
// empty locator or label are dropped; extra fields are ignored. A skipped
// first record is logged at debug level.
func Read(r io.Reader, policy HeaderPolicy, log logger.Logger) ([]Entry, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var entries []Entry
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeIO, err, "failed to parse manifest")
		}
		line++

		if line == 1 {
			if len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], "\ufeff")
			}
			if skipHeader(record, policy) {
				log.DebugWithFields("First record treated as header", map[string]interface{}{
					"policy": string(policy),
					"record": strings.Join(record, ","),
				})
				continue
			}
		}

		if len(record) < 2 || record[0] == "" || record[1] == "" {
			continue
		}
		entries = append(entries, Entry{Locator: record[0], Label: record[1], Line: line})
	}

	return entries, nil
}

func skipHeader(record []string, policy HeaderPolicy) bool {
	switch policy {
	case HeaderAlways:
		return true
	case HeaderNever:
		return false
	default:
		if len(record) == 0 {
			return true
		}
		_, err := ExtractAssetID(record[0])
		return err != nil
	}
}

// ReadFile opens and parses the manifest at path
func ReadFile(path string, policy HeaderPolicy, log logger.Logger) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "failed to open manifest")
	}
	defer f.Close()

	return Read(f, policy, log)
}
