package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldTable      = "table"
	FieldRecordID   = "record_id"
	FieldState      = "state"
	FieldLeaves     = "leaves"
	FieldMode       = "mode"
)

// Components
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentPanel      = "panel"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentProperties = "properties"
	ComponentWatch      = "watch"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
)

// Operations
const (
	OpAppend   = "append"
	OpList     = "list"
	OpImport   = "import"
	OpRender   = "render"
	OpReload   = "reload"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// Fields is an ordered builder for structured log attributes.
type Fields []any

func NewFields() Fields {
	return make(Fields, 0, 8)
}

func (f Fields) With(key string, value any) Fields {
	return append(f, key, value)
}

func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, FieldError, err.Error())
}

func (f Fields) WithOperation(op string) Fields {
	return append(f, FieldOperation, op)
}

func (f Fields) WithTable(table string) Fields {
	return append(f, FieldTable, table)
}

func (f Fields) WithHTTPRequest(method, path, query, clientIP string) Fields {
	return append(f,
		FieldMethod, method,
		FieldPath, path,
		FieldQuery, query,
		FieldClientIP, clientIP)
}

func (f Fields) WithHTTPResponse(statusCode int, durationMs int64) Fields {
	return append(f,
		FieldStatusCode, statusCode,
		FieldDuration, durationMs,
		FieldSuccess, statusCode < 400)
}
