package output

import (
	"time"

	"github.com/leapstack-labs/cellsql/pkg/completion"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// CellOutput is a cell as seen through its active view.
type CellOutput struct {
	Language  language.Type          `json:"language"`
	Changed   bool                   `json:"changed"`
	Text      string                 `json:"text"`
	HostCode  string                 `json:"host_code"`
	Metadata  language.Metadata      `json:"metadata"`
	Dialect   string                 `json:"dialect,omitempty"`
	Supported map[language.Type]bool `json:"supported"`
}

// TransformOutput is the result of running one adapter in one direction.
type TransformOutput struct {
	Language  language.Type     `json:"language"`
	Direction string            `json:"direction"`
	Text      string            `json:"text"`
	Offset    int               `json:"offset"`
	Metadata  language.Metadata `json:"metadata"`
}

// CompletionOutput lists completion candidates for a query position.
type CompletionOutput struct {
	Engine string            `json:"engine"`
	Pos    int               `json:"pos"`
	From   int               `json:"from"`
	Items  []completion.Item `json:"items"`
}

// ConnectionInfo is one row of the connection list.
type ConnectionInfo struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	Dialect       string `json:"dialect"`
	Source        string `json:"source,omitempty"`
	Tables        int    `json:"tables"`
	DefaultSchema string `json:"default_schema,omitempty"`
	Cached        bool   `json:"cached"`
	Latest        bool   `json:"latest"`
}

// DialectOutput describes the dialect a connection resolves to.
type DialectOutput struct {
	Connection    string   `json:"connection"`
	Name          string   `json:"name"`
	DisplayName   string   `json:"display_name"`
	DefaultSchema string   `json:"default_schema,omitempty"`
	Quote         string   `json:"quote"`
	Keywords      int      `json:"keywords"`
	Functions     int      `json:"functions"`
	DataTypes     []string `json:"data_types"`
}

// ChangedOutput lists the connections a catalog update invalidated.
type ChangedOutput struct {
	Source  string   `json:"source"`
	Changed []string `json:"changed"`
}

// CellInfo is one row of the stored cell list.
type CellInfo struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Language  language.Type `json:"language"`
	Lines     int           `json:"lines"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// CheckResult is one doctor check.
type CheckResult struct {
	Group  string `json:"group"`
	Name   string `json:"name"`
	Status string `json:"status"` // success, warning, error, skipped
	Detail string `json:"detail,omitempty"`
}

// DoctorOutput is the JSON output of the doctor command.
type DoctorOutput struct {
	ConfigFile string        `json:"config_file,omitempty"`
	Checks     []CheckResult `json:"checks"`
	Score      int           `json:"score"`
	Healthy    bool          `json:"healthy"`
}

// VersionOutput is the JSON output of the version command.
type VersionOutput struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
}
