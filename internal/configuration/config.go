package configuration

import (
	"strings"

	"github.com/spf13/viper"
)

// Storage backends
const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type MongoConfig struct {
	Uri                     string `mapstructure:"uri"`
	Database                string `mapstructure:"database"`
	MessagesCollection      string `mapstructure:"messagesCollection"`
	ConversationsCollection string `mapstructure:"conversationsCollection"`
	SocketRoute             string `mapstructure:"socketRoute"`
}

type ServerConfig struct {
	AppPort        int      `mapstructure:"app_port"`
	SocketPort     int      `mapstructure:"socket_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Config struct {
	Storage      string       `mapstructure:"storage"`
	ChatDatabase MongoConfig  `mapstructure:"mongo"`
	Server       ServerConfig `mapstructure:"server"`
}

// LoadConfig reads the json config file and lets environment variables
// override any key (HELPDESK_MONGO_URI, HELPDESK_SERVER_APP_PORT, ...).
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("HELPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage", StorageMongo)
	v.SetDefault("mongo.messagesCollection", "messages")
	v.SetDefault("mongo.conversationsCollection", "conversations")
	v.SetDefault("mongo.socketRoute", "ws")
	v.SetDefault("server.app_port", 8080)
	v.SetDefault("server.socket_port", 8081)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:4200"})

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
