package resource

import (
	"fmt"
	"strconv"
	"strings"
)

// Registry keys shared by every package that publishes or consumes
// connections. The strings are the compatibility surface between packages
// and must not change.
const (
	KeyPDOWriter        = "connection.pdo.writer"
	KeyRedisCache       = "connection.redis.cache"
	KeyRedisMessaging   = "connection.redis.messaging"
	KeyKafkaProducer    = "connection.kafka.producer"
	KeyKafkaConsumer    = "connection.kafka.consumer"
	KeyAMQP             = "connection.amqp"
	pdoReaderPrefix     = "connection.pdo.reader"
	loggerHandlerPrefix = "logger.handler."
)

// PDOReaderKey returns the key of the n-th read replica, counting from 1.
func PDOReaderKey(n int) string {
	if n < 1 {
		panic(fmt.Sprintf("resource: reader index must be >= 1, got %d", n))
	}
	return pdoReaderPrefix + strconv.Itoa(n)
}

// LoggerHandlerKey returns the key under which a named log handler is kept.
func LoggerHandlerKey(name string) string {
	return loggerHandlerPrefix + name
}

// IsLoggerHandlerKey reports whether key names a log handler and returns the
// handler name.
func IsLoggerHandlerKey(key string) (string, bool) {
	name, ok := strings.CutPrefix(key, loggerHandlerPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsConnectionKey reports whether key lives in the connection namespace.
func IsConnectionKey(key string) bool {
	return strings.HasPrefix(key, "connection.")
}
