package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shopify/sarama"
	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/practice-sem-2/chat-service/internal/auth"
	"github.com/practice-sem-2/chat-service/internal/realtime"
	"github.com/practice-sem-2/chat-service/internal/server"
	storage "github.com/practice-sem-2/chat-service/internal/storages"
	usecase "github.com/practice-sem-2/chat-service/internal/usecases"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func initLogger(level string) *logrus.Logger {

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.
			WithField("log_level", level).
			Warning("specified invalid log level")
	} else {
		logger.SetLevel(logLevel)
		logger.
			WithField("log_level", level).
			Infof("specified %s log level", logLevel.String())
	}

	return logger
}

func initDB(dsn string, logger *logrus.Logger) *sqlx.DB {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		logger.Fatalf("can't connect to database: %s", err.Error())
	}

	err = db.Ping()

	if err != nil {
		logger.Fatalf("database ping failed: %s", err.Error())
	}

	logger.Info("successfully connected to database")
	return db
}

// initProducer builds the Kafka producer for the updates feed. The feed is
// optional: without KAFKA_BROKERS the service runs with updates disabled.
func initProducer(logger *logrus.Logger) sarama.SyncProducer {
	brokers := viper.GetString("KAFKA_BROKERS")
	if len(brokers) == 0 {
		logger.Info("KAFKA_BROKERS is not set, updates feed is disabled")
		return nil
	}

	addrs := strings.Split(brokers, ",")
	config := sarama.NewConfig()
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Timeout = 10 * time.Second
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(addrs, config)

	if err != nil {
		logger.WithError(err).Fatalf("can't create producer")
	}

	return producer
}

func main() {
	viper.AutomaticEnv()

	var host string
	var port int
	var logLevel string

	flag.IntVar(&port, "port", 80, "port on which server will be started")
	flag.StringVar(&host, "host", "0.0.0.0", "host on which server will be started")
	flag.StringVar(&logLevel, "log", "info", "log level")

	flag.Parse()

	logger := initLogger(logLevel)

	db := initDB(viper.GetString("DB_DSN"), logger)
	defer func(db *sqlx.DB) {
		err := db.Close()
		if err != nil {
			logger.Errorf("during db connection close an error occurred: %s", err.Error())
		}
	}(db)

	producer := initProducer(logger)

	store := storage.NewRegistry(db, producer, &storage.UpdatesStoreConfig{
		UpdatesTopic: viper.GetString("UPDATES_TOPIC"),
	})

	hub := realtime.NewHub(logger)
	retention := usecase.RetentionPolicy(viper.GetString("CHAT_MESSAGE_RETENTION"))
	chatsUsecase := usecase.NewChatsUsecase(store, hub, retention, logger)
	gateway := realtime.NewGateway(hub, chatsUsecase, logger)

	secret := viper.GetString("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET environment variable must be defined")
	}
	verifier := auth.NewVerifier(secret)

	validate := validator.New()
	srv := server.New(chatsUsecase, verifier, validate, gateway, logger)

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		sig := <-osSignal
		logger.Infof("%s caught. Gracefully shutdown", sig.String())
		if err := srv.Shutdown(); err != nil {
			logger.WithError(err).Error("server shutdown failed")
		}
	}()

	address := fmt.Sprintf("%s:%d", host, port)
	if err := srv.Listen(address); err != nil {
		logger.Fatalf("http serving error: %s", err.Error())
	}
}
