package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/userholder/internal/holder/domain"
	"github.com/aussiebroadwan/userholder/pkg/slogx"
)

const recordFields = 4

// ErrMalformedRecord is returned (inside a RecordError) for lines that are
// not "fullName;email;salt:hash;phone".
var ErrMalformedRecord = fmt.Errorf("%w: malformed import record", domain.ErrValidation)

// RecordError reports which record of a batch failed. Line is 1-based.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("import record %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ImportBatch loads identities from "fullName;email;salt:hash;phone" records.
// Blank email or phone fields mean absent. The batch is all or nothing:
// every record is validated before the first one is stored. Imported
// identities replace existing ones with the same login.
func (r *Registry) ImportBatch(ctx context.Context, records []string) ([]*domain.Identity, error) {
	log := slogx.FromContext(ctx)

	identities := make([]*domain.Identity, 0, len(records))
	for i, rec := range records {
		req, err := parseRecord(rec)
		if err == nil {
			var id *domain.Identity
			if id, err = r.Factory.New(req); err == nil {
				identities = append(identities, id)
				continue
			}
		}
		log.Warn("import rejected", slog.Int("record", i+1), slog.Any("error", err))
		return nil, &RecordError{Line: i + 1, Err: err}
	}

	r.mu.Lock()
	for _, id := range identities {
		if _, exists := r.users[id.Login()]; exists {
			log.Debug("import replaces existing user", slog.String("login", id.Login()))
		}
		r.users[id.Login()] = id
	}
	r.mu.Unlock()

	r.Metrics.Imported(len(identities))
	log.Info("users imported", slog.Int("count", len(identities)))
	return identities, nil
}

// ImportReader reads one record per line, skipping blank lines, and passes
// them to ImportBatch.
func (r *Registry) ImportReader(ctx context.Context, src io.Reader) ([]*domain.Identity, error) {
	var records []string

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import records: %w", err)
	}

	return r.ImportBatch(ctx, records)
}

func parseRecord(rec string) (domain.ByImport, error) {
	fields := strings.Split(rec, ";")
	if len(fields) != recordFields {
		return domain.ByImport{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRecord, recordFields, len(fields))
	}

	creds := strings.Split(fields[2], ":")
	if len(creds) != 2 {
		return domain.ByImport{}, fmt.Errorf("%w: credentials must be salt:hash", ErrMalformedRecord)
	}
	salt, hash := creds[0], creds[1]

	first, last, err := domain.SplitFullName(fields[0])
	if err != nil {
		return domain.ByImport{}, err
	}

	return domain.ByImport{
		FirstName:    first,
		LastName:     last,
		Email:        blankToEmpty(fields[1]),
		Phone:        blankToEmpty(fields[3]),
		Salt:         salt,
		PasswordHash: hash,
	}, nil
}

func blankToEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
