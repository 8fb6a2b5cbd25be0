package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/database/model"
)

// ExpectedCSVHeader is the column layout every uploaded games CSV must have.
var ExpectedCSVHeader = []string{
	"ID",
	"Title",
	"Description",
	"Launch Date",
	"Developer",
	"Publisher",
	"Price",
	"Discount %",
	"Original Price",
	"Discounted Price",
	"Recent Reviews",
	"Recent Positive %",
	"Recent Review Summary",
	"Total Reviews",
	"Total Positive %",
	"Total Review Summary",
	"Rating Value",
	"Best Rating",
	"Worst Rating",
	"Tags",
	"URL",
}

// HeaderMismatchError reports a CSV whose first row is not ExpectedCSVHeader.
type HeaderMismatchError struct {
	Received []string
}

func (e *HeaderMismatchError) Error() string {
	return fmt.Sprintf("csv header does not match the expected schema: got %d columns", len(e.Received))
}

func (e *HeaderMismatchError) Unwrap() error {
	return ErrInvalidCSV
}

// ValidateCSVHeader reads the first record of r. A leading byte order mark
// is ignored.
func ValidateCSVHeader(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: file is empty", ErrInvalidCSV)
	} else if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if !slices.Equal(header, ExpectedCSVHeader) {
		return &HeaderMismatchError{Received: header}
	}
	return nil
}

func validateCSVFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ValidateCSVHeader(f)
}

// uniqueName returns name, or "base (n).ext" with the smallest n not taken
// in dir.
func uniqueName(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// CSVParseError reports a file the csv reader could not get through.
type CSVParseError struct {
	Err error
}

func (e *CSVParseError) Error() string {
	return "CSV parsing error: " + e.Err.Error()
}

func (e *CSVParseError) Unwrap() []error {
	return []error{ErrInvalidCSV, e.Err}
}

// CheckCSVRows reads every record of r and reports the records whose column
// count differs from the first one. Records are numbered from 1.
func CheckCSVRows(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	problems := []string{}
	expected := -1
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return problems, nil
		} else if err != nil {
			return nil, &CSVParseError{Err: err}
		}
		if expected < 0 {
			expected = len(record)
		} else if len(record) != expected {
			problems = append(problems, fmt.Sprintf("Line %d: expected %d columns, found %d", line, expected, len(record)))
		}
	}
}

// CheckCSV runs CheckCSVRows on a stored file. Files of datasets that are not
// published yet are only visible to the uploader; userId is nil for
// anonymous requests.
func (s *DatasetService) CheckCSV(hubfileId int, userId *int) ([]string, error) {
	hf := &model.Hubfile{}
	if err := s.db.First(hf, hubfileId).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ds, err := s.GetById(hf.DataSetId)
	if err != nil {
		return nil, err
	}
	if !ds.IsSynchronized() && (userId == nil || *userId != ds.UserId) {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(config.GetDatasetFolder(ds.UserId, ds.Id), hf.Name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return CheckCSVRows(f)
}
