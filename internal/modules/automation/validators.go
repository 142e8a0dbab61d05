package automation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/contentflow/core/internal/pkg/platform"
)

// WarningCode classifies a non-blocking contract issue.
type WarningCode string

const (
	WarnPayloadMissing        WarningCode = "payload_missing"
	WarnMetaMissing           WarningCode = "meta_missing"
	WarnMetaInjected          WarningCode = "meta_injected"
	WarnContractMismatch      WarningCode = "contract_mismatch"
	WarnIdentifierMismatch    WarningCode = "identifier_mismatch"
	WarnPlatformsRenormalized WarningCode = "platforms_renormalized"
)

// Warning is a repaired contract deviation. Delivery may proceed.
type Warning struct {
	Code    WarningCode `json:"code"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string { return w.Message }

// CheckResult is the outcome of validating a payload. Normalized is always
// set, even when OK is false, so callers can inspect what would be sent.
type CheckResult struct {
	OK         bool      `json:"ok"`
	Errors     []string  `json:"errors"`
	Warnings   []Warning `json:"warnings"`
	Normalized *Payload  `json:"normalized"`
}

// Strict promotes warnings to errors.
func (r CheckResult) Strict() CheckResult {
	out := r
	out.Errors = append([]string(nil), r.Errors...)
	for _, w := range r.Warnings {
		out.Errors = append(out.Errors, w.Message)
	}
	out.Warnings = nil
	out.OK = len(out.Errors) == 0
	return out
}

// ErrorText joins the blocking errors for display.
func (r CheckResult) ErrorText() string { return strings.Join(r.Errors, "; ") }

type contract struct {
	required []string
}

var contracts = map[Identifier]contract{
	GenerateAngles:   {required: []string{"company_id", "brand", "platforms"}},
	GenerateIdeas:    {required: []string{"company_id", "strategy_id", "angle_number", "platforms"}},
	GenerateContent:  {required: []string{"company_id", "idea_id", "platforms"}},
	Autofill:         {required: []string{"website"}},
	RealEstateIngest: {required: []string{"url"}},
	AvatarVideo:      {required: []string{"script", "image_count", "images"}},
	ProductCampaign:  {required: []string{"company_id", "product"}},
}

// Validate checks p against the contract named by its own identifier.
func Validate(p *Payload) CheckResult {
	var id Identifier
	if p != nil {
		id = p.Identifier
	}
	return ValidateAs(id, p)
}

// ValidateAs checks p against the contract of id. The caller's intent wins:
// a payload declaring another identifier is rewritten with a warning.
// The input is never modified and ValidateAs never panics.
func ValidateAs(id Identifier, p *Payload) CheckResult {
	res := CheckResult{Errors: []string{}, Warnings: []Warning{}}
	if p == nil {
		p = &Payload{Identifier: id}
		res.warn(WarnPayloadMissing, "", "payload was empty")
	}
	n := p.Clone()
	res.Normalized = n
	if n.Fields == nil {
		n.Fields = map[string]any{}
	}

	if id == "" {
		id = n.Identifier
	}
	if n.Identifier != id {
		res.warn(WarnIdentifierMismatch, "identifier",
			fmt.Sprintf("identifier %q replaced with %q", n.Identifier, id))
		n.Identifier = id
	}
	label := string(id)
	if label == "" {
		label = "generic"
	}

	checkMeta(&res, n, id)

	if raw, ok := n.Fields["platforms"]; ok && !platform.IsCanonical(raw) {
		n.Fields["platforms"] = platform.Normalize(platform.FromAny(raw)).Slice()
		res.warn(WarnPlatformsRenormalized, "platforms",
			fmt.Sprintf("%s: platforms re-normalized to canonical slots", label))
	}

	for _, field := range contracts[id].required {
		if isMissing(n.Fields[field]) {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: missing required field %q", label, field))
		}
	}

	if n.Meta.UserID != nil {
		if top, ok := n.Fields["user_id"]; ok && top != nil {
			if fmt.Sprint(top) != *n.Meta.UserID {
				res.Errors = append(res.Errors, fmt.Sprintf(
					"%s: meta.user_id %q conflicts with user_id %q", label, *n.Meta.UserID, fmt.Sprint(top)))
			}
		}
	}

	res.OK = len(res.Errors) == 0
	return res
}

func checkMeta(res *CheckResult, n *Payload, id Identifier) {
	if n.Meta == nil {
		n.Meta = &Meta{}
		res.warn(WarnMetaMissing, "meta", "meta was missing and has been created")
	}
	m := n.Meta
	if strings.TrimSpace(m.TS) == "" {
		m.TS = time.Now().UTC().Format(TimestampLayout)
		res.warn(WarnMetaInjected, "meta.ts", "meta.ts was missing and has been injected")
	}
	if strings.TrimSpace(m.Source) == "" {
		m.Source = DefaultSource
		res.warn(WarnMetaInjected, "meta.source", "meta.source was missing and has been injected")
	}
	if strings.TrimSpace(m.RequestID) == "" {
		m.RequestID = NewRequestID()
		res.warn(WarnMetaInjected, "meta.request_id", "meta.request_id was missing and has been injected")
	}
	if want := id.Contract(); m.Contract != want {
		if m.Contract != "" {
			res.warn(WarnContractMismatch, "meta.contract",
				fmt.Sprintf("meta.contract %q replaced with %q", m.Contract, want))
		}
		m.Contract = want
	}
}

func (r *CheckResult) warn(code WarningCode, field, msg string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Field: field, Message: msg})
}

// isMissing treats nil, blank strings, empty collections and platform arrays
// without any selected slot as absent.
func isMissing(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []string:
		return len(nonEmpty(typed)) == 0
	case []any:
		if len(typed) == 0 {
			return true
		}
		for _, item := range typed {
			if s, ok := item.(string); !ok || s != "" {
				return false
			}
		}
		return true
	case map[string]any:
		return len(typed) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
