package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
}

type DatabaseConfig struct {
	// Backend is "postgres" or "memory".
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type FeedConfig struct {
	// Backend is "memory", "nats" or "postgres".
	Backend string `mapstructure:"backend"`
	NATSURL string `mapstructure:"nats_url"`
}

type GameConfig struct {
	NumberMin      int `mapstructure:"number_min"`
	NumberMax      int `mapstructure:"number_max"`
	InitialLife    int `mapstructure:"initial_life"`
	MaxRounds      int `mapstructure:"max_rounds"`
	RoomCodeLength int `mapstructure:"room_code_length"`
	MinPlayers     int `mapstructure:"min_players"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("database.backend", "postgres")
	viper.SetDefault("feed.backend", "memory")
	viper.SetDefault("game.number_min", 1)
	viper.SetDefault("game.number_max", 100)
	viper.SetDefault("game.initial_life", 3)
	viper.SetDefault("game.max_rounds", 3)
	viper.SetDefault("game.room_code_length", 6)
	viper.SetDefault("game.min_players", 2)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
