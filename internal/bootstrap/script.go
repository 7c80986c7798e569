package bootstrap

import (
	"encoding/base64"
	"fmt"
	"strings"
	"text/template"
)

// ScriptParams feeds the boot-time user-data template. Args are appended
// verbatim to the container invocation.
type ScriptParams struct {
	ImageURI          string
	Region            string
	LogGroup          string
	MaxRuntimeMinutes int
	Args              []string
}

// The script is the system's only defense against runaway jobs: the timed
// shutdown is scheduled before anything else runs, and the trailing
// terminate call releases the instance when the container exits early.
// The instance authenticates with its own profile credentials; nothing is
// embedded here. Container output lands on the app-<instanceId> stream so
// the log adapter can find it without a side index.
var scriptTemplate = template.Must(template.New("userdata").Parse(`#!/bin/bash -xe
# Schedule forced termination after max runtime
echo "sudo shutdown -h +{{.MaxRuntimeMinutes}}" | at now

# Ensure the container runtime is present and running
command -v docker >/dev/null 2>&1 || yum install -y docker
service docker start || true

INSTANCE_ID=$(curl -s http://169.254.169.254/latest/meta-data/instance-id)

# Configure ECR login using the instance profile credentials
aws ecr get-login-password --region {{.Region}} | docker login -u AWS --password-stdin {{.Registry}}

# Run the training container, shipping output to the instance log stream
docker run \
  --log-driver=awslogs \
  --log-opt awslogs-region={{.Region}} \
  --log-opt awslogs-group={{.LogGroup}} \
  --log-opt awslogs-stream=app-${INSTANCE_ID} \
  {{.ImageURI}}{{range .Args}} {{.}}{{end}}

# Self-terminate if the job completes early
aws ec2 terminate-instances --instance-ids $INSTANCE_ID --region {{.Region}}
`))

// Script renders the bootstrap shell script for one training job.
func Script(p ScriptParams) (string, error) {
	if p.ImageURI == "" {
		return "", fmt.Errorf("image URI is required")
	}
	if p.MaxRuntimeMinutes <= 0 {
		p.MaxRuntimeMinutes = DefaultMaxRuntimeMinutes
	}

	data := struct {
		ScriptParams
		Registry string
	}{
		ScriptParams: p,
		Registry:     Registry(p.ImageURI),
	}

	var sb strings.Builder
	if err := scriptTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render bootstrap script: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// UserData renders the script and base64-encodes it for RunInstances.
func UserData(p ScriptParams) (string, error) {
	script, err := Script(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(script)), nil
}
