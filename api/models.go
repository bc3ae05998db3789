package api

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// APIError is the error body returned by the server.
type APIError struct {
	Name      string                 `json:"name,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Code      int                    `json:"code,omitempty"`
	ClassName string                 `json:"className,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Authentication strategies.
const (
	StrategyLocal    = "local"
	StrategyProxy    = "proxy"
	StrategyKeycloak = "keycloak"
)

// AuthenticationRequest logs in with one of the Strategy* strategies. Which
// of the other fields are needed depends on the strategy.
type AuthenticationRequest struct {
	Strategy    string `json:"strategy"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

// AuthenticationDetails is returned by a successful login.
type AuthenticationDetails struct {
	AccessToken    string                 `json:"accessToken"`
	Authentication map[string]interface{} `json:"authentication,omitempty"`
	User           *User                  `json:"user,omitempty"`
}

// User is a KDP user.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	FirstName   string     `json:"firstName,omitempty"`
	LastName    string     `json:"lastName,omitempty"`
	WorkspaceID string     `json:"workspaceId,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Record is a single stored record. User data lives under DataStoreKey.
type Record map[string]interface{}

var numberJSON = jsoniter.Config{
	EscapeHTML:             true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// UnmarshalJSON decodes a record keeping integers exact: integral numbers
// become int64 and all others float64.
func (r *Record) UnmarshalJSON(b []byte) error {
	var m map[string]interface{}
	if err := numberJSON.Unmarshal(b, &m); err != nil {
		return err
	}
	ConvertNumbers(m)
	*r = m
	return nil
}

// number is satisfied by both jsoniter.Number and encoding/json.Number.
type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

// ConvertNumbers replaces the json numbers in v, recursing into maps and
// slices, with int64 when they fit and float64 otherwise. It returns v, or the
// converted value when v is itself a number.
func ConvertNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, e := range val {
			val[k] = ConvertNumbers(e)
		}
	case []interface{}:
		for i, e := range val {
			val[i] = ConvertNumbers(e)
		}
	}
	return v
}

// DataStoreKey is the key in a Record holding the row as written.
const DataStoreKey = "_data_store"

// SequenceReadRequest asks for the BatchSize records after StartingRecordID.
// An empty StartingRecordID starts at the beginning of the dataset.
type SequenceReadRequest struct {
	DatasetID        string `json:"datasetId"`
	StartingRecordID string `json:"startingRecordId"`
	BatchSize        int    `json:"batchSize"`
}

// ReadRangeRequest asks for the records between two record ids.
type ReadRangeRequest struct {
	DatasetID               string `json:"datasetId"`
	StartingRecordID        string `json:"startingRecordId"`
	EndingRecordID          string `json:"endingRecordId"`
	ExcludeStartingRecordID bool   `json:"excludeStartingRecordId"`
	BatchSize               int    `json:"batchSize"`
}

// RecordBatch is a page of records. More is set when records remain after
// LastRecordID.
type RecordBatch struct {
	Records      []Record `json:"records"`
	More         bool     `json:"more"`
	LastRecordID string   `json:"lastRecordId"`
}

// SplitPoints are record ids dividing a dataset into ranges of roughly equal
// size.
type SplitPoints struct {
	Splits []string `json:"splits"`
}

// WriteBatchResponse lists the partitions a batch was written to.
type WriteBatchResponse struct {
	Partitions []string `json:"partitions"`
}

// SecurityLabelInfoParams configures the security label parser applied to a
// batch write. ParserClassName and Fields are required.
type SecurityLabelInfoParams struct {
	ParserClassName     string   `json:"parserClassName"`
	Fields              []string `json:"fields"`
	LabelHandlingPolicy string   `json:"labelHandlingPolicy,omitempty"`
	ReplacementString   string   `json:"replacementString,omitempty"`
}

// BatchWriteRequest is the body of a v2 write.
type BatchWriteRequest struct {
	Records           []map[string]interface{} `json:"records"`
	SecurityLabelInfo *SecurityLabelInfoParams `json:"securityLabelInfo,omitempty"`
}

type WriteParams struct {
	IsAsync *bool
}

// IngestCreateRequest starts an ingest job of the given Type.
type IngestCreateRequest struct {
	WorkspaceID string       `json:"workspaceId"`
	DatasetID   string       `json:"datasetId"`
	Type        string       `json:"type"`
	Config      IngestConfig `json:"config"`
}

type IngestConfig struct {
	URLs []string `json:"urls,omitempty"`
}

// IngestTypeURL ingests a list of files by url.
const IngestTypeURL = "url"

// LuceneQueryRequest queries a dataset with a lucene expression.
type LuceneQueryRequest struct {
	DatasetID  string `json:"datasetId"`
	Expression string `json:"expression"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

// QueryDocumentLuceneResponse is a page of documents matching a lucene
// expression.
type QueryDocumentLuceneResponse struct {
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	Records []Record `json:"records"`
}

// CreateDataset is the body of a dataset creation.
type CreateDataset struct {
	Name              string `json:"name"`
	WorkspaceID       string `json:"workspaceId"`
	Description       string `json:"description"`
	AutoCreateIndexes bool   `json:"autoCreateIndexes"`
	Schema            string `json:"schema"`
	SearchAnyField    bool   `json:"searchAnyField"`
	RecordCount       int    `json:"recordCount"`
}

// PatchDataset holds the dataset fields to update. Nil fields are left alone.
type PatchDataset struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	AutoCreateIndexes *bool   `json:"autoCreateIndexes,omitempty"`
	Schema            *string `json:"schema,omitempty"`
	SearchAnyField    *bool   `json:"searchAnyField,omitempty"`
}

// Dataset is a KDP dataset.
type Dataset struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	WorkspaceID       string     `json:"workspaceId"`
	Description       string     `json:"description,omitempty"`
	AutoCreateIndexes bool       `json:"autoCreateIndexes"`
	Schema            string     `json:"schema,omitempty"`
	SearchAnyField    bool       `json:"searchAnyField"`
	RecordCount       int        `json:"recordCount"`
	State             string     `json:"state,omitempty"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

type CreateWorkspace struct {
	Name string `json:"name"`
}

// Workspace is a KDP workspace.
type Workspace struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Index is an index over one or more fields of a dataset.
type Index struct {
	ID        string   `json:"id"`
	DatasetID string   `json:"datasetId"`
	Fields    []string `json:"fields"`
	Name      string   `json:"name,omitempty"`
}

// IndexPaginator is a page of indexes.
type IndexPaginator struct {
	Total int     `json:"total"`
	Limit int     `json:"limit"`
	Skip  int     `json:"skip"`
	Data  []Index `json:"data"`
}

// IndexDefinition names the fields of an index to create or remove.
type IndexDefinition struct {
	Fields []string `json:"fields"`
}

// ModifyIndexesRequest creates and removes indexes and sets the dataset's
// indexing options.
type ModifyIndexesRequest struct {
	Create            []IndexDefinition `json:"create"`
	Remove            []IndexDefinition `json:"remove"`
	AutoCreateIndexes bool              `json:"autoCreateIndexes"`
	SearchAnyField    bool              `json:"searchAnyField"`
}

// Job is a background job such as an ingest or a clear.
type Job struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type,omitempty"`
	State       string                 `json:"state,omitempty"`
	DatasetID   string                 `json:"datasetId,omitempty"`
	WorkspaceID string                 `json:"workspaceId,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty"`
	CreatedAt   *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time             `json:"updatedAt,omitempty"`
}

// JobPaginator is a page of jobs.
type JobPaginator struct {
	Total int   `json:"total"`
	Limit int   `json:"limit"`
	Skip  int   `json:"skip"`
	Data  []Job `json:"data"`
}

// ListParams are the common paging parameters of list endpoints. Zero Limit
// lets the server choose.
type ListParams struct {
	Limit  int
	Skip   int
	Sort   map[string]interface{}
	Filter map[string]interface{}
}

// GetJobsParams filters a job listing. Empty ids are left out.
type GetJobsParams struct {
	ListParams
	DatasetID   string
	WorkspaceID string
}

type GetIndexesParams struct {
	DatasetID string
	Limit     int
}

// UploadedFile describes a file accepted by an upload.
type UploadedFile struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	DatasetID string `json:"datasetId"`
	Size      int64  `json:"size"`
}

// AuditLogConfiguration sets how long a workspace keeps its audit logs.
type AuditLogConfiguration struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspaceId"`
	KeepForever bool       `json:"keepForever"`
	AgeInDays   int        `json:"ageInDays"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// AuditLogConfigurationPaginator is a page of audit log configurations.
type AuditLogConfigurationPaginator struct {
	Total int                     `json:"total"`
	Limit int                     `json:"limit"`
	Skip  int                     `json:"skip"`
	Data  []AuditLogConfiguration `json:"data"`
}

// GetAuditLogConfigsParams filters an audit log configuration listing.
type GetAuditLogConfigsParams struct {
	ListParams
	KeepForever *bool
	WorkspaceID string
}

type PatchAuditLogConfiguration struct {
	KeepForever bool `json:"keepForever"`
	AgeInDays   int  `json:"ageInDays"`
}

// AuditLog is one audited action.
type AuditLog struct {
	ID          string                 `json:"id"`
	WorkspaceID string                 `json:"workspaceId,omitempty"`
	UserID      string                 `json:"userId,omitempty"`
	Action      string                 `json:"action,omitempty"`
	Entity      map[string]interface{} `json:"entity,omitempty"`
	CreatedAt   *time.Time             `json:"createdAt,omitempty"`
}

// AuditLogPaginator is a page of audit logs.
type AuditLogPaginator struct {
	Total int        `json:"total"`
	Limit int        `json:"limit"`
	Skip  int        `json:"skip"`
	Data  []AuditLog `json:"data"`
}
