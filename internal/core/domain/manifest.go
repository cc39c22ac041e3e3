package domain

import (
	"errors"
	"strings"
)

// Manifest describes one work of the corpus.
type Manifest struct {
	WorkID    string `json:"work_id" yaml:"work_id"`
	Author    string `json:"author" yaml:"author"`
	WorkTitle string `json:"work_title" yaml:"work_title"`
	Lang      string `json:"lang,omitempty" yaml:"lang,omitempty"`
	HTMLURL   string `json:"html_url,omitempty" yaml:"html_url,omitempty"`
}

func (m Manifest) Validate() error {
	var missing []string
	if strings.TrimSpace(m.WorkID) == "" {
		missing = append(missing, "work_id")
	}
	if strings.TrimSpace(m.Author) == "" {
		missing = append(missing, "author")
	}
	if strings.TrimSpace(m.WorkTitle) == "" {
		missing = append(missing, "work_title")
	}
	if len(missing) > 0 {
		return WrapError(ErrInvalidInput, "validate manifest", errors.New("missing "+strings.Join(missing, ", ")))
	}
	return nil
}

func (m Manifest) Meta(defaultLang string) WorkMeta {
	lang := m.Lang
	if lang == "" {
		lang = defaultLang
	}
	return WorkMeta{
		WorkID:    m.WorkID,
		Author:    m.Author,
		WorkTitle: m.WorkTitle,
		Lang:      lang,
	}
}

type RunStatus string

const (
	RunStatusOK      RunStatus = "ok"
	RunStatusSkipped RunStatus = "skipped"
	RunStatusError   RunStatus = "error"
)

// RunEntry is one line of a batch run log.
type RunEntry struct {
	WorkID   string    `json:"work_id"`
	Parents  int       `json:"parents"`
	Children int       `json:"children"`
	Status   RunStatus `json:"status,omitempty"`
	Error    string    `json:"error,omitempty"`
}
