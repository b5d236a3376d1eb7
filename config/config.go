package config

import (
	"log"

	"github.com/spf13/viper"
)

type ICEServer struct {
	URLs       []string `mapstructure:"urls" json:"urls"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

type Config struct {
	Server struct {
		Port string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Match struct {
		InactivitySeconds int `mapstructure:"inactivitySeconds"`
		SweepSeconds      int `mapstructure:"sweepSeconds"`
	}
	Moderation struct {
		Backend         string
		ReportThreshold int `mapstructure:"reportThreshold"`
		WindowHours     int `mapstructure:"windowHours"`
	}
	ICE struct {
		Servers []ICEServer
	}
}

var C Config

func Load() {
	viper.SetConfigFile("config/config.yaml")

	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("match.inactivitySeconds", 300)
	viper.SetDefault("match.sweepSeconds", 30)
	viper.SetDefault("moderation.backend", "memory")
	viper.SetDefault("moderation.reportThreshold", 3)
	viper.SetDefault("moderation.windowHours", 24)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("config: file not loaded, using defaults: %v", err)
	}
	if err := viper.Unmarshal(&C); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}
}
