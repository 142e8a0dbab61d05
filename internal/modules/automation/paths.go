package automation

import (
	"net/url"
	"strings"
)

// DefaultPath serves the content workflows and any unknown identifier.
const DefaultPath = "content-engine"

var defaultPaths = map[Identifier]string{
	GenerateAngles:   DefaultPath,
	GenerateIdeas:    DefaultPath,
	GenerateContent:  DefaultPath,
	Autofill:         DefaultPath,
	AvatarVideo:      "avatar-video",
	ProductCampaign:  "product-campaign",
	RealEstateIngest: "real-estate-ingest",
}

func buildPathTable(overrides map[string]string) map[Identifier]string {
	out := make(map[Identifier]string, len(defaultPaths)+len(overrides))
	for id, path := range defaultPaths {
		out[id] = path
	}
	for id, path := range overrides {
		if p := strings.Trim(strings.TrimSpace(path), "/"); p != "" {
			out[Identifier(strings.TrimSpace(id))] = p
		}
	}
	return out
}

// webhookURL joins origin, the webhook prefix and path, adding the operation
// as the action query parameter.
func webhookURL(origin, path, operation string) string {
	u := strings.TrimRight(strings.TrimSpace(origin), "/") + "/webhook/" + strings.Trim(path, "/")
	if op := strings.TrimSpace(operation); op != "" {
		u += "?" + url.Values{"action": {op}}.Encode()
	}
	return u
}
