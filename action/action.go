package action

import (
	"fmt"
	"strings"
)

var kTokens = map[Action]string{
	RemoveApplication:  "remove_application",
	ClearCounter:       "clear_counter",
	MailTest:           "mail_test",
	PurgeObsoleteFiles: "purge_obsolete_files",
	GC:                 "gc",
	HeapDump:           "heap_dump",
	InvalidateSession:  "invalidate_session",
	InvalidateSessions: "invalidate_sessions",
	KillThread:         "kill_thread",
	PauseJob:           "pause_job",
	ResumeJob:          "resume_job",
	ClearCache:         "clear_cache",
	ClearCacheKey:      "clear_cache_key",
	Logout:             "logout",
}

var kByToken = invert(kTokens)

func invert(tokens map[Action]string) map[string]Action {
	result := make(map[string]Action, len(tokens))
	for act, token := range tokens {
		result[token] = act
	}
	return result
}

func parse(token string) (Action, error) {
	if act, ok := kByToken[strings.ToLower(token)]; ok {
		return act, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, token)
}

func (a Action) token() string {
	if token, ok := kTokens[a]; ok {
		return token
	}
	return fmt.Sprintf("Action(%d)", int(a))
}
