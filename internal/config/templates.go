package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindClient = "client"
	KindModels = "models"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		return clientTemplate, nil
	case KindModels:
		return modelsTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `[backend]
# false connects to a backend that is already listening on session.address
managed = true
binary = "docker"
image = "ghcr.io/hecrj/kiroshi/server:latest"
models_dir = "data/models"
container_models_path = "/models"
port = 9149
gpus = "all"
settings_path = "data/models.toml"

[session]
address = "127.0.0.1:9149"
connect_timeout = "5s"
read_timeout = "0s"
write_timeout = "15s"
max_frame_bytes = 1073741824

[readiness]
interval = "500ms"
multiplier = 1.0
max_delay = "0s"
attempt_timeout = "2s"
# 0s waits until interrupted
timeout = "0s"

[status]
enabled = true
addr = "127.0.0.1:9150"
cors_origins = ["http://localhost:3000"]

[history]
enabled = true
path = "data/history.db"

[log]
level = "info"
timestamp = true
no_color = false
`

const modelsTemplate = `# Per-model prompt templates. "{prompt}" is replaced by the user prompt;
# without it the template is appended after a comma.

[example-model]
prompt_template = "masterpiece, best quality, {prompt}"
negative_prompt_template = "lowres, bad anatomy"
`
