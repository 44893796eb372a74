package configuration

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Scheduler   Scheduler   `json:"scheduler"`
	Storage     Storage     `json:"storage"`
	Platforms   Platforms   `json:"platforms"`
	Pubsub      Pubsub      `json:"pubsub"`
	Renderer    Renderer    `json:"renderer"`
}

type App struct {
	Port           int      `json:"port"`
	SecretKey      string   `json:"secretKey"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mongo Db `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Scheduler groups the timing knobs of the three periodic controllers.
type Scheduler struct {
	PollIntervalSeconds     int    `json:"pollIntervalSeconds"`
	PublishTimeoutSeconds   int    `json:"publishTimeoutSeconds"`
	VideoPollSeconds        int    `json:"videoPollSeconds"`
	VideoLeadHours          int    `json:"videoLeadHours"`
	VideoStaggerMinutes     int    `json:"videoStaggerMinutes"`
	TokenSweepSpec          string `json:"tokenSweepSpec"`
	QuotaResetSpec          string `json:"quotaResetSpec"`
	SignedURLRefreshMinutes int    `json:"signedUrlRefreshMinutes"`
	PublishesPerMinute      int    `json:"publishesPerMinute"`
}

type Storage struct {
	Region   string `json:"region"`
	Bucket   string `json:"bucket"`
	Endpoint string `json:"endpoint"`
}

type Platforms struct {
	Facebook  PlatformCredentials `json:"facebook"`
	Instagram PlatformCredentials `json:"instagram"`
	TikTok    PlatformCredentials `json:"tiktok"`
}

type PlatformCredentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

// Renderer points at the external video rendering pipeline.
type Renderer struct {
	Host string `json:"host"`
}

var C Config

func init() {
	LoadConfig()
	initApp(&C)
	initDatabase(&C)
	initScheduler(&C)
	initPlatforms(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintln(os.Stderr, "config file not found, relying on environment")
		} else {
			fmt.Fprintf(os.Stderr, "error reading config file: %v\n", err)
		}
	}
	if err := viper.Unmarshal(&C); err != nil {
		fmt.Fprintf(os.Stderr, "unable to decode config into struct: %v\n", err)
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10010
	}
	if len(C.App.AllowedOrigins) == 0 {
		C.App.AllowedOrigins = []string{"http://localhost:4200"}
	}
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = "localhost"
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = "5432"
	}

	if C.Database.Mongo.Host == "" {
		C.Database.Mongo.Host = os.Getenv("MONGO_HOST")
	}
	if C.Database.Mongo.Port == "" {
		C.Database.Mongo.Port = os.Getenv("MONGO_PORT")
	}
	if C.Database.Mongo.User == "" {
		C.Database.Mongo.User = os.Getenv("MONGO_USER")
	}
	if C.Database.Mongo.Password == "" {
		C.Database.Mongo.Password = os.Getenv("MONGO_PASSWORD")
	}
	if C.Database.Mongo.Name == "" {
		if v := os.Getenv("MONGO_DB_NAME"); v != "" {
			C.Database.Mongo.Name = v
		} else {
			C.Database.Mongo.Name = "storycast"
		}
	}
	if C.Database.Mongo.Host == "" {
		C.Database.Mongo.Host = "localhost"
	}
	if C.Database.Mongo.Port == "" {
		C.Database.Mongo.Port = "27017"
	}
}

func initScheduler(C *Config) {
	if C.Scheduler.PollIntervalSeconds <= 0 {
		C.Scheduler.PollIntervalSeconds = 60
	}
	if C.Scheduler.PublishTimeoutSeconds <= 0 {
		C.Scheduler.PublishTimeoutSeconds = 45
	}
	if C.Scheduler.VideoPollSeconds <= 0 {
		C.Scheduler.VideoPollSeconds = 60
	}
	if C.Scheduler.VideoLeadHours <= 0 {
		C.Scheduler.VideoLeadHours = 4
	}
	if C.Scheduler.VideoStaggerMinutes <= 0 {
		C.Scheduler.VideoStaggerMinutes = 5
	}
	if C.Scheduler.TokenSweepSpec == "" {
		C.Scheduler.TokenSweepSpec = "@hourly"
	}
	if C.Scheduler.QuotaResetSpec == "" {
		C.Scheduler.QuotaResetSpec = "@daily"
	}
	if C.Scheduler.SignedURLRefreshMinutes <= 0 {
		C.Scheduler.SignedURLRefreshMinutes = 60
	}
	if C.Scheduler.PublishesPerMinute <= 0 {
		C.Scheduler.PublishesPerMinute = 10
	}
}

func initPlatforms(C *Config) {
	if v := os.Getenv("FACEBOOK_APP_ID"); v != "" {
		C.Platforms.Facebook.ClientID = v
	}
	if v := os.Getenv("FACEBOOK_APP_SECRET"); v != "" {
		C.Platforms.Facebook.ClientSecret = v
	}
	if v := os.Getenv("INSTAGRAM_APP_ID"); v != "" {
		C.Platforms.Instagram.ClientID = v
	}
	if v := os.Getenv("INSTAGRAM_APP_SECRET"); v != "" {
		C.Platforms.Instagram.ClientSecret = v
	}
	if v := os.Getenv("TIKTOK_CLIENT_KEY"); v != "" {
		C.Platforms.TikTok.ClientID = v
	}
	if v := os.Getenv("TIKTOK_CLIENT_SECRET"); v != "" {
		C.Platforms.TikTok.ClientSecret = v
	}
}
