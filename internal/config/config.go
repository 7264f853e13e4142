// Package config loads server configuration from the environment into a
// nested struct tree via envconfig, one sub-struct per concern.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTP   HTTP
	Model  Model
	Agent  Agent
	Pool   Pool
}

type HTTP struct {
	Port          int `envconfig:"HTTP_PORT" default:"3000"`
	AgentEventsPort int `envconfig:"AGENT_EVENTS_PORT" default:"4000"`
}

// Model supplies the model-client credential and defaults. AUTOGLM_API_KEY
// is checked first (this system's primary vision-model provider); absence
// of both is logged as an error but does not block startup.
type Model struct {
	APIKey         string `envconfig:"AUTOGLM_API_KEY"`
	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	BaseURL        string `envconfig:"MODEL_BASE_URL" default:"https://open.bigmodel.cn/api/paas/v4"`
	PrimaryModel   string `envconfig:"MODEL_PRIMARY" default:"glm-4v"`
	AuxiliaryModel string `envconfig:"MODEL_AUXILIARY"`
	ThreeStage     bool   `envconfig:"MODEL_THREE_STAGE" default:"false"`
	PlanModel      string `envconfig:"MODEL_PLAN"`
	ExecuteModel   string `envconfig:"MODEL_EXECUTE"`
}

type Agent struct {
	MaxSteps          int           `envconfig:"AGENT_MAX_STEPS" default:"50"`
	MaxExecutionTime  time.Duration `envconfig:"AGENT_MAX_EXECUTION_TIME" default:"300s"`
	ActionDelay       time.Duration `envconfig:"AGENT_ACTION_DELAY" default:"1s"`
	MaxNoActionStreak int           `envconfig:"AGENT_MAX_NO_ACTION_STREAK" default:"3"`
	AuditLogDir       string        `envconfig:"AGENT_AUDIT_LOG_DIR" default:"logs"`
}

type Pool struct {
	MaxConnections  int           `envconfig:"POOL_MAX_CONNECTIONS" default:"32"`
	IdleThreshold   time.Duration `envconfig:"POOL_IDLE_THRESHOLD" default:"5m"`
	HealthInterval  time.Duration `envconfig:"POOL_HEALTH_INTERVAL" default:"30s"`
	CleanupInterval time.Duration `envconfig:"POOL_CLEANUP_INTERVAL" default:"1m"`
	JarPath         string        `envconfig:"POOL_MIRROR_JAR" default:"jar/scrcpy-server-v3.3.4.jar"`
	StreamBasePort  int           `envconfig:"POOL_STREAM_BASE_PORT" default:"27200"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
