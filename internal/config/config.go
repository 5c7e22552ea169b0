package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time parses the lock wait timeout

    "github.com/joho/godotenv" // godotenv loads a local .env file into the environment
)

// Store drivers accepted in STORE_DRIVER.
const (
    DriverMySQL  = "mysql"
    DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
    Env          string        // application environment (e.g. "dev", "prod")
    Port         string        // HTTP port to listen on
    LogLevel     string        // zap level name (debug, info, warn, error)
    StoreDriver  string        // "mysql" or "memory"
    DBUser       string        // database username
    DBPass       string        // database password (optional)
    DBHost       string        // database host address
    DBPort       string        // database port number
    DBName       string        // database name
    DBMigrate    bool          // create missing tables at startup
    LockWait     time.Duration // how long a transaction waits for an event lock
    JWTSecret    string        // secret used to sign JWTs
    AccessTTLMin int           // access token time‑to‑live in minutes
    BcryptCost   int           // bcrypt cost for password hashing
    AdminLogin   string        // login name of the seeded administrator (optional)
    AdminPass    string        // password of the seeded administrator
    AdminNick    string        // nickname of the seeded administrator
    Cache        CacheConfig     // event list cache
    RateLimit    RateLimitConfig // reserve/cancel token bucket
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present; variables already set in the environment win.  Required
// variables are enforced by must() and missing values cause the program
// to exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load() // absent file is fine

    cfg := Config{
        Env:          must("APP_ENV"),                          // environment (dev/test/prod)
        Port:         must("APP_PORT"),                         // port to bind the HTTP server
        LogLevel:     getenv("LOG_LEVEL", "info"),              // logger verbosity
        StoreDriver:  getenv("STORE_DRIVER", DriverMySQL),      // persistent store selection
        DBMigrate:    envBool("DB_MIGRATE", true),              // create tables on boot
        LockWait:     time.Duration(envInt("DB_LOCK_WAIT_TIMEOUT", 5)) * time.Second,
        JWTSecret:    must("JWT_SECRET"),                       // secret used for signing JWTs
        AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),          // TTL for access tokens in minutes
        BcryptCost:   mustInt("BCRYPT_COST"),                   // bcrypt cost factor
        AdminLogin:   os.Getenv("ADMIN_LOGIN_NAME"),            // seed admin login (empty disables)
        AdminPass:    os.Getenv("ADMIN_PASSWORD"),              // seed admin password
        AdminNick:    getenv("ADMIN_NICKNAME", "admin"),        // seed admin nickname
        Cache:        loadCache(),
        RateLimit:    loadRateLimit(),
    }
    switch cfg.StoreDriver {
    case DriverMySQL:
        cfg.DBUser = must("DB_USER")      // database user
        cfg.DBPass = os.Getenv("DB_PASS") // database password (empty allowed)
        cfg.DBHost = must("DB_HOST")      // database host
        cfg.DBPort = must("DB_PORT")      // database port
        cfg.DBName = must("DB_NAME")      // database name
    case DriverMemory:
        // nothing to connect to
    default:
        log.Fatalf("invalid STORE_DRIVER: %q (want %s or %s)", cfg.StoreDriver, DriverMySQL, DriverMemory)
    }
    if cfg.AdminLogin != "" && cfg.AdminPass == "" {
        log.Fatalf("ADMIN_PASSWORD is required when ADMIN_LOGIN_NAME is set")
    }
    return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
