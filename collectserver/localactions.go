package collectserver

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Symantec/uhura/action"
)

// Files under the storage directory untouched for this long are
// considered obsolete.
const kObsoleteAge = 90 * 24 * time.Hour

func (s *CollectorServer) executeLocalAction(
	name string, act action.Action, params url.Values) (string, error) {
	switch act {
	case action.ClearCounter:
		return s.clearCounter(name, params.Get("counter")), nil
	case action.MailTest:
		return s.mailTest(name)
	case action.PurgeObsoleteFiles:
		return s.purgeObsoleteFiles(name)
	}
	return "", fmt.Errorf("%s is not a local action", act)
}

func (s *CollectorServer) clearCounter(name, counter string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if counter == "" || counter == "all" {
		delete(s.counters, name)
		return fmt.Sprintf("All counters cleared for %s", name)
	}
	if byCounter := s.counters[name]; byCounter != nil {
		delete(byCounter, counter)
	}
	return fmt.Sprintf("Counter %s cleared for %s", counter, name)
}

func (s *CollectorServer) mailTest(name string) (string, error) {
	if s.mailer == nil {
		return "", errors.New("no mail session configured")
	}
	if err := s.mailer.SendTestReport(name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Test mail sent for %s", name), nil
}

func (s *CollectorServer) purgeObsoleteFiles(name string) (string, error) {
	if s.storageDir == "" {
		return "", errors.New("no storage directory configured")
	}
	cutoff := time.Now().Add(-kObsoleteAge)
	purged := 0
	err := filepath.Walk(
		s.storageDir,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || info.ModTime().After(cutoff) {
				return nil
			}
			if err := os.Remove(path); err != nil {
				s.logger.Println(err)
				return nil
			}
			purged++
			return nil
		})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Obsolete files purged for %s: %d", name, purged), nil
}
