package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// jsonOutput is set by the global --json flag.
var jsonOutput bool

// Response is the envelope every --json command prints.
type Response struct {
	OK       bool        `json:"ok"`
	Data     interface{} `json:"data,omitempty"`
	Error    *ErrorInfo  `json:"error,omitempty"`
	Warnings []Warning   `json:"warnings,omitempty"`
	Meta     *Meta       `json:"meta,omitempty"`
}

// ErrorInfo describes a failed command. Code is one of the Err* constants.
type ErrorInfo struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Warning is a non-fatal problem, such as attribute values that could not be
// cast for a comparison.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Meta carries result counts and timing.
type Meta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

func writeResponse(resp Response) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(resp)
}

func outputSuccess(data interface{}, meta *Meta) {
	outputSuccessWithWarnings(data, nil, meta)
}

func outputSuccessWithWarnings(data interface{}, warnings []Warning, meta *Meta) {
	writeResponse(Response{OK: true, Data: data, Warnings: warnings, Meta: meta})
}

func isJSONOutput() bool {
	return jsonOutput
}

// fail reports err. In JSON mode it prints the error envelope and returns nil
// so cobra does not print the error a second time.
func fail(info ErrorInfo, err error) error {
	if jsonOutput {
		writeResponse(Response{Error: &info})
		return nil
	}
	if info.Suggestion != "" {
		return fmt.Errorf("%w\n\n%s", err, info.Suggestion)
	}
	return err
}

func handleError(code string, err error, suggestion string) error {
	return fail(ErrorInfo{Code: code, Message: err.Error(), Suggestion: suggestion}, err)
}

func handleErrorMsg(code, message, suggestion string) error {
	return handleError(code, errors.New(message), suggestion)
}

// handleQueryError reports an engine failure under its classified code, with
// the error's structured fields as details.
func handleQueryError(err error) error {
	code, suggestion := classifyQueryError(err)
	return fail(ErrorInfo{
		Code:       code,
		Message:    err.Error(),
		Details:    queryErrorDetails(err),
		Suggestion: suggestion,
	}, err)
}
