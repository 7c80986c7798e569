package bootstrap

import "strings"

// Defaults applied when the caller omits a field. Machine shape and max
// runtime are passed through otherwise; there is no server-side allow-list.
const (
	DefaultCodeName          = "DEMO"
	DefaultInstanceType      = "t3.micro"
	DefaultMaxRuntimeMinutes = 5
)

// trainingImages maps a training-code selector to its container image.
// Unknown selectors fall back to DEMO rather than failing, keeping job
// submission permissive.
var trainingImages = map[string]string{
	"DEMO":  "414327512415.dkr.ecr.ap-southeast-2.amazonaws.com/hello2ec2-repo",
	"TOTEM": "414327512415.dkr.ecr.ap-southeast-2.amazonaws.com/hello2ec2-repo",
}

// ResolveImage returns the container image for codeName and the selector
// that actually matched.
func ResolveImage(codeName string) (imageURI, resolved string) {
	if codeName == "" {
		codeName = DefaultCodeName
	}
	if uri, ok := trainingImages[codeName]; ok {
		return uri, codeName
	}
	return trainingImages[DefaultCodeName], DefaultCodeName
}

// Images returns the selector table for listing and verification.
func Images() map[string]string {
	out := make(map[string]string, len(trainingImages))
	for k, v := range trainingImages {
		out[k] = v
	}
	return out
}

// Registry extracts the registry host from an image URI.
func Registry(imageURI string) string {
	if i := strings.Index(imageURI, "/"); i > 0 {
		return imageURI[:i]
	}
	return imageURI
}

// RepositoryName extracts the repository path from an image URI.
func RepositoryName(imageURI string) string {
	if i := strings.Index(imageURI, "/"); i > 0 {
		return imageURI[i+1:]
	}
	return imageURI
}
