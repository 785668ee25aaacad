package ucp

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// continuationFields lists where a continuation URL may appear, most recent
// schema first.
var continuationFields = []string{"continue_url", "checkout_url", "web_url"}

// Result is the caller-facing outcome of a checkout tool call.
type Result struct {
	ContinuationURL string    `json:"continue_url,omitempty"`
	CheckoutID      string    `json:"checkout_id,omitempty"`
	Status          string    `json:"status,omitempty"`
	Messages        []Message `json:"messages,omitempty"`

	// Raw holds the tool-result text when it was not a JSON object.
	Raw string `json:"raw,omitempty"`
}

// Message is an informational or warning message attached to a checkout.
type Message struct {
	Type     string `json:"type,omitempty"`
	Code     string `json:"code,omitempty"`
	Content  string `json:"content"`
	Severity string `json:"severity,omitempty"`
}

// UnmarshalJSON accepts either a message object or a bare string.
func (m *Message) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = Message{Content: s}
		return nil
	}
	type plain Message
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = Message(p)
	return nil
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type toolResult struct {
	Content           []contentBlock  `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent"`
	IsError           bool            `json:"isError"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Parse unwraps a JSON-RPC reply into a Result or a *ProtocolError. It never
// returns a partially populated Result.
//
// The result is read in this order: text content, then structuredContent,
// then the result object itself.
func Parse(raw []byte) (*Result, error) {
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Message: "malformed reply: " + err.Error(), RawDetail: truncate(string(raw))}
	}
	if resp.Error != nil {
		return nil, resp.Error.toProtocolError()
	}
	if isNull(resp.Result) {
		return nil, &ProtocolError{Message: "reply carries neither result nor error", RawDetail: truncate(string(raw))}
	}
	var tr toolResult
	if err := json.Unmarshal(resp.Result, &tr); err != nil {
		return nil, &ProtocolError{Message: "result is not an object: " + err.Error(), RawDetail: truncate(string(raw))}
	}

	if text, ok := tr.text(); ok {
		if tr.IsError {
			return nil, toolError(text)
		}
		return decodeToolText(text), nil
	}
	if !isNull(tr.StructuredContent) {
		if tr.IsError {
			return nil, toolError(string(tr.StructuredContent))
		}
		if obj, ok := decodeObject(string(tr.StructuredContent)); ok {
			return resultFromObject(obj), nil
		}
		return nil, &ProtocolError{Message: "structuredContent is not an object", RawDetail: truncate(string(raw))}
	}
	if tr.IsError {
		return nil, &ProtocolError{Message: "tool reported an error without content", RawDetail: truncate(string(raw))}
	}

	obj, _ := decodeObject(string(resp.Result))
	if !hasCheckoutFields(obj) {
		return nil, &ProtocolError{Message: "tool result has no checkout content", RawDetail: truncate(string(raw))}
	}
	return resultFromObject(obj), nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// hasCheckoutFields reports whether a bare result object looks like a
// checkout rather than an empty or foreign tool result.
func hasCheckoutFields(obj map[string]any) bool {
	if obj == nil {
		return false
	}
	if _, ok := obj["checkout"].(map[string]any); ok {
		return true
	}
	for _, k := range append([]string{"id", "status"}, continuationFields...) {
		if stringField(obj, k) != "" {
			return true
		}
	}
	return false
}

// rpcErrorFrom returns the JSON-RPC error carried by raw, if any.
func rpcErrorFrom(raw []byte) *ProtocolError {
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Error == nil {
		return nil
	}
	return resp.Error.toProtocolError()
}

func (r *toolResult) text() (string, bool) {
	for _, c := range r.Content {
		if c.Type == "text" || c.Type == "" {
			return c.Text, true
		}
	}
	return "", false
}

func (e *rpcError) toProtocolError() *ProtocolError {
	perr := &ProtocolError{
		Message: e.Message,
		Code:    rawScalar(e.Code),
	}
	if perr.Message == "" {
		perr.Message = "checkout rejected"
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return perr
	}
	var detail any
	if err := json.Unmarshal(e.Data, &detail); err != nil {
		perr.RawDetail = string(e.Data)
		return perr
	}
	switch d := detail.(type) {
	case string:
		perr.RawDetail = d
		perr.AccessDisabled = d == AccessDisabledDetail
	case map[string]any:
		perr.RawDetail = string(e.Data)
		if code, ok := d["code"].(string); ok && strings.EqualFold(code, AccessDisabledCode) {
			perr.AccessDisabled = true
		}
	default:
		perr.RawDetail = string(e.Data)
	}
	return perr
}

// toolError handles a tool result flagged isError. Its text is either a
// structured error object or a plain message.
func toolError(text string) *ProtocolError {
	perr := &ProtocolError{Message: text, RawDetail: text}
	var obj struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Content string          `json:"content"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		perr.Code = rawScalar(obj.Code)
		switch {
		case obj.Message != "":
			perr.Message = obj.Message
		case obj.Content != "":
			perr.Message = obj.Content
		}
	}
	perr.AccessDisabled = strings.TrimSpace(text) == AccessDisabledDetail ||
		strings.EqualFold(perr.Code, AccessDisabledCode)
	return perr
}

// decodeToolText decodes the text-encoded payload. Text that is not a JSON
// object (after unwrapping one level of string encoding) is passed through
// as Raw.
func decodeToolText(text string) *Result {
	obj, ok := decodeObject(text)
	if !ok {
		return &Result{Raw: text}
	}
	return resultFromObject(obj)
}

func resultFromObject(obj map[string]any) *Result {
	if inner, ok := obj["checkout"].(map[string]any); ok {
		obj = inner
	}
	res := &Result{
		CheckoutID: stringField(obj, "id"),
		Status:     stringField(obj, "status"),
	}
	for _, f := range continuationFields {
		if v := stringField(obj, f); v != "" {
			res.ContinuationURL = v
			break
		}
	}
	if msgs, ok := obj["messages"]; ok {
		b, _ := json.Marshal(msgs)
		var out []Message
		if err := json.Unmarshal(b, &out); err == nil {
			res.Messages = out
		}
	}
	return res
}

func decodeObject(text string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, false
		}
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// rawScalar renders a JSON number or string without quotes.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func truncate(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
