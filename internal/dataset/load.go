package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// LoadTransactions reads a population from path, picking the format from
// the file extension: .csv, .json (an array) or .db/.sqlite.
func LoadTransactions(ctx context.Context, path string) ([]domain.Transaction, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadTransactionsCSV(f)
	case ".json":
		var out []domain.Transaction
		if err := readJSON(path, &out); err != nil {
			return nil, err
		}
		return out, nil
	case ".db", ".sqlite":
		s, err := openExisting(path)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Transactions(ctx)
	default:
		return nil, domain.Invalidf("unsupported transaction file type %q", ext)
	}
}

// LoadBalances reads balance pairs from path; formats as LoadTransactions.
func LoadBalances(ctx context.Context, path string) ([]domain.BalancePair, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadBalancesCSV(f)
	case ".json":
		var out []domain.BalancePair
		if err := readJSON(path, &out); err != nil {
			return nil, err
		}
		return out, nil
	case ".db", ".sqlite":
		s, err := openExisting(path)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		return s.Balances(ctx)
	default:
		return nil, domain.Invalidf("unsupported balance file type %q", ext)
	}
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.Invalidf("parse %s: %v", filepath.Base(path), err)
	}
	return nil
}

// openExisting refuses to create an empty database for a mistyped path.
func openExisting(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return OpenSQLite(path)
}
