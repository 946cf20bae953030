// Пакет config собирает конфигурацию моста из .env (через godotenv):
// выбор бэкенда, пути к базам аккаунтов и состояния, прокси, таймауты
// автозаполнения и пороги самоблокировки резолвера, параметры логирования.
//
// Значения нормализуются в loadConfig; некритичные ошибки не валят запуск,
// а превращаются в предупреждения с подстановкой значения по умолчанию.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Имена бэкендов, допустимые в BACKEND.
const (
	BackendGotd   = "gotd"
	BackendGogram = "gogram"
)

// EnvConfig описывает параметры, приходящие из окружения (.env).
type EnvConfig struct {
	// APIID/APIHash — значения по умолчанию для новых аккаунтов; могут быть пустыми.
	APIID   int
	APIHash string
	Backend string

	AccountsDB  string
	StateDB     string
	SessionsDir string
	Proxy       string
	TestDC      bool

	AutofillTimeout    time.Duration
	ThrottleRPS        int
	DedupWindowSec     int
	ResolverThreshold  int
	ResolverBlockTTL   time.Duration
	ResolverChatTTL    time.Duration
	ResolverInputTTL   time.Duration
	ResolverCacheSize  int
	RestartDelay       time.Duration
	MediaGroupMaxBytes int64

	// Паспорт клиента.
	AppVersion    string
	DeviceModel   string
	SystemVersion string

	LogLevel string
	// Файловое логирование
	LogFile           string
	LogFileLevel      string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool
}

// Config хранит конфигурацию среды и предупреждения, накопленные при чтении.
type Config struct {
	Env      EnvConfig
	warnings []string
	mu       sync.RWMutex
}

const (
	defaultBackend            = BackendGotd
	defaultAccountsDB         = "data/accounts.bbolt"
	defaultStateDB            = "data/state.bbolt"
	defaultSessionsDir        = "sessions"
	defaultAutofillTimeoutSec = 60
	defaultThrottleRPS        = 5
	defaultDedupWindowSec     = 120
	defaultResolverThreshold  = 50
	defaultResolverBlockSec   = 180
	defaultResolverChatSec    = 300
	defaultResolverInputSec   = 180
	defaultResolverCacheSize  = 5000
	defaultRestartDelayMS     = 1000
	defaultMediaGroupMaxMB    = 50
	defaultAppVersion         = "TeleBridge v2"
	defaultDeviceModel        = "Linux"
	defaultSystemVersion      = "6.1"
	defaultLogLevel           = "info"
	// LOG_FILE не имеет дефолта: файловый вывод включается только явно.
	defaultLogFileLevel      = "debug"
	defaultLogFileMaxSize    = 50
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 7
	defaultLogFileCompress   = true
)

var (
	cfgInstance = &Config{Env: Defaults()}
	cfgDone     bool
	loadMu      sync.Mutex
)

// Load — точка входа для инициализации глобальной конфигурации. Повторный
// вызов запрещён. Отсутствующий .env не ошибка: значения берутся из окружения.
func Load(envPath string) error {
	loadMu.Lock()
	defer loadMu.Unlock()
	if cfgDone {
		return errors.New("config already loaded")
	}
	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance = newCfg
	cfgDone = true
	return nil
}

// Defaults возвращает конфигурацию по умолчанию без чтения окружения.
func Defaults() EnvConfig {
	return EnvConfig{
		Backend:            defaultBackend,
		AccountsDB:         defaultAccountsDB,
		StateDB:            defaultStateDB,
		SessionsDir:        defaultSessionsDir,
		AutofillTimeout:    defaultAutofillTimeoutSec * time.Second,
		ThrottleRPS:        defaultThrottleRPS,
		DedupWindowSec:     defaultDedupWindowSec,
		ResolverThreshold:  defaultResolverThreshold,
		ResolverBlockTTL:   defaultResolverBlockSec * time.Second,
		ResolverChatTTL:    defaultResolverChatSec * time.Second,
		ResolverInputTTL:   defaultResolverInputSec * time.Second,
		ResolverCacheSize:  defaultResolverCacheSize,
		RestartDelay:       defaultRestartDelayMS * time.Millisecond,
		MediaGroupMaxBytes: defaultMediaGroupMaxMB << 20,
		AppVersion:         defaultAppVersion,
		DeviceModel:        defaultDeviceModel,
		SystemVersion:      defaultSystemVersion,
		LogLevel:           defaultLogLevel,
		LogFileLevel:       defaultLogFileLevel,
		LogFileMaxSize:     defaultLogFileMaxSize,
		LogFileMaxBackups:  defaultLogFileMaxBackups,
		LogFileMaxAge:      defaultLogFileMaxAge,
		LogFileCompress:    defaultLogFileCompress,
	}
}

// loadConfig выполняет фактическую загрузку без установки глобального состояния.
func loadConfig(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var warnings []string

	apiID, err := parseOptionalInt("API_ID")
	if err != nil {
		return nil, err
	}
	apiHash := strings.TrimSpace(os.Getenv("API_HASH"))

	backend, err := sanitizeBackend(os.Getenv("BACKEND"), &warnings)
	if err != nil {
		return nil, err
	}

	env := EnvConfig{
		APIID:       apiID,
		APIHash:     apiHash,
		Backend:     backend,
		AccountsDB:  sanitizeFile("ACCOUNTS_DB", os.Getenv("ACCOUNTS_DB"), defaultAccountsDB, &warnings),
		StateDB:     sanitizeFile("STATE_DB", os.Getenv("STATE_DB"), defaultStateDB, &warnings),
		SessionsDir: sanitizeFile("SESSIONS_DIR", os.Getenv("SESSIONS_DIR"), defaultSessionsDir, &warnings),
		Proxy:       strings.TrimSpace(os.Getenv("PROXY")),
		TestDC:      strings.EqualFold(strings.TrimSpace(os.Getenv("TEST_DC")), "true"),

		AutofillTimeout: seconds(parseIntDefault("AUTOFILL_TIMEOUT_SEC",
			defaultAutofillTimeoutSec, greaterThanZero, &warnings)),
		ThrottleRPS:       parseIntDefault("THROTTLE_RPS", defaultThrottleRPS, greaterThanZero, &warnings),
		DedupWindowSec:    parseIntDefault("DEDUP_WINDOW_SEC", defaultDedupWindowSec, nonNegative, &warnings),
		ResolverThreshold: parseIntDefault("RESOLVER_ERROR_THRESHOLD", defaultResolverThreshold, greaterThanZero, &warnings),
		ResolverBlockTTL: seconds(parseIntDefault("RESOLVER_BLOCK_SEC",
			defaultResolverBlockSec, greaterThanZero, &warnings)),
		ResolverChatTTL: seconds(parseIntDefault("RESOLVER_CHAT_TTL_SEC",
			defaultResolverChatSec, greaterThanZero, &warnings)),
		ResolverInputTTL: seconds(parseIntDefault("RESOLVER_INPUT_TTL_SEC",
			defaultResolverInputSec, greaterThanZero, &warnings)),
		ResolverCacheSize: parseIntDefault("RESOLVER_CACHE_SIZE", defaultResolverCacheSize, greaterThanZero, &warnings),
		RestartDelay: time.Duration(parseIntDefault("RESTART_DELAY_MS",
			defaultRestartDelayMS, nonNegative, &warnings)) * time.Millisecond,
		MediaGroupMaxBytes: int64(parseIntDefault("MEDIA_GROUP_MAX_MB",
			defaultMediaGroupMaxMB, greaterThanZero, &warnings)) << 20,

		AppVersion:    sanitizeString("APP_VERSION", os.Getenv("APP_VERSION"), defaultAppVersion, &warnings),
		DeviceModel:   sanitizeString("DEVICE_MODEL", os.Getenv("DEVICE_MODEL"), defaultDeviceModel, &warnings),
		SystemVersion: sanitizeString("SYSTEM_VERSION", os.Getenv("SYSTEM_VERSION"), defaultSystemVersion, &warnings),

		LogLevel:          sanitizeLogLevel("LOG_LEVEL", os.Getenv("LOG_LEVEL"), defaultLogLevel, &warnings),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
		LogFileLevel:      sanitizeLogLevel("LOG_FILE_LEVEL", os.Getenv("LOG_FILE_LEVEL"), defaultLogFileLevel, &warnings),
		LogFileMaxSize:    parseIntDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero, &warnings),
		LogFileMaxBackups: parseIntDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative, &warnings),
		LogFileMaxAge:     parseIntDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative, &warnings),
		LogFileCompress:   parseBoolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, &warnings),
	}

	return &Config{Env: env, warnings: warnings}, nil
}

// Warnings возвращает копию предупреждений, накопленных при загрузке .env.
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env возвращает снимок EnvConfig. До Load — значения по умолчанию.
func Env() EnvConfig {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	return cfgInstance.Env
}

func seconds(v int) time.Duration { return time.Duration(v) * time.Second }

// parseOptionalInt читает необязательное целое: пусто — 0, мусор — ошибка.
func parseOptionalInt(name string) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env %s must be a valid integer: %w", name, err)
	}
	return v, nil
}

// parseIntDefault читает name как int. Если пусто/некорректно/не проходит
// validator — возвращает defaultVal и пишет предупреждение.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }

// parseBoolDefault читает name как bool; некорректное значение заменяется defaultVal.
func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// sanitizeLogLevel ограничивает уровень набором {debug, info, warn, error}.
func sanitizeLogLevel(name, level, defaultVal string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		return defaultVal
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env %s value %q is invalid; using default %q", name, level, defaultVal)
		return defaultVal
	}
}

// sanitizeBackend допускает только известные бэкенды; пустое значение — gotd.
func sanitizeBackend(value string, warnings *[]string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "":
		appendWarningf(warnings, "env BACKEND is not set; using default %q", defaultBackend)
		return defaultBackend, nil
	case BackendGotd, BackendGogram:
		return v, nil
	default:
		return "", fmt.Errorf("env BACKEND value %q is invalid (must be %q or %q)", value, BackendGotd, BackendGogram)
	}
}

// sanitizeFile возвращает путь или fallback с предупреждением.
func sanitizeFile(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, fallback)
		return fallback
	}
	return v
}

func sanitizeString(_ string, value, fallback string, _ *[]string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
