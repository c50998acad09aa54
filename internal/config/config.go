package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	ReadDeadlineSeconds  int   `mapstructure:"read_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type RabbitConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	RoutingKey string `mapstructure:"routing_key"`

	Prefetch                int `mapstructure:"prefetch"`
	ReconnectInitialSeconds int `mapstructure:"reconnect_initial_seconds"`
	ReconnectMaxSeconds     int `mapstructure:"reconnect_max_seconds"`
}

func (r RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.User, r.Password, r.Host, r.Port)
}

func (r RabbitConfig) ReconnectInitial() time.Duration {
	return time.Duration(r.ReconnectInitialSeconds) * time.Second
}

func (r RabbitConfig) ReconnectMax() time.Duration {
	return time.Duration(r.ReconnectMaxSeconds) * time.Second
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	RateLimit         int `mapstructure:"rate_limit"`
	RateWindowSeconds int `mapstructure:"rate_window_seconds"`
}

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	WS     WSConfig     `mapstructure:"ws"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Rabbit RabbitConfig `mapstructure:"rabbit"`
	Redis  RedisConfig  `mapstructure:"redis"`

	// derived
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadDeadline  time.Duration
	RateWindow    time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}

	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 25
	}
	if c.WS.WriteDeadlineSeconds == 0 {
		c.WS.WriteDeadlineSeconds = 10
	}
	if c.WS.ReadDeadlineSeconds == 0 {
		c.WS.ReadDeadlineSeconds = 60
	}
	if c.WS.MaxMessageSizeBytes == 0 {
		c.WS.MaxMessageSizeBytes = 65536
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "chatapp"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "chat_messages"
	}
	if c.Rabbit.Host == "" {
		c.Rabbit.Host = "localhost"
	}
	if c.Rabbit.Port == 0 {
		c.Rabbit.Port = 5672
	}
	if c.Rabbit.Exchange == "" {
		c.Rabbit.Exchange = "chat.messages"
	}
	if c.Rabbit.Queue == "" {
		c.Rabbit.Queue = "chat.messages.created"
	}
	if c.Rabbit.RoutingKey == "" {
		c.Rabbit.RoutingKey = "message.created"
	}
	if c.Rabbit.Prefetch == 0 {
		c.Rabbit.Prefetch = 20
	}
	if c.Rabbit.ReconnectInitialSeconds == 0 {
		c.Rabbit.ReconnectInitialSeconds = 2
	}
	if c.Rabbit.ReconnectMaxSeconds == 0 {
		c.Rabbit.ReconnectMaxSeconds = 10
	}
	if c.Redis.RateLimit == 0 {
		c.Redis.RateLimit = 60
	}
	if c.Redis.RateWindowSeconds == 0 {
		c.Redis.RateWindowSeconds = 60
	}

	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteDeadline = time.Duration(c.WS.WriteDeadlineSeconds) * time.Second
	c.ReadDeadline = time.Duration(c.WS.ReadDeadlineSeconds) * time.Second
	c.RateWindow = time.Duration(c.Redis.RateWindowSeconds) * time.Second
	return &c, nil
}
