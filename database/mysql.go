package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"luxio/config"

	_ "github.com/go-sql-driver/mysql"
)

const maxPingAttempts = 5

// Open connects to MySQL with the service's pool settings, retrying the initial ping.
func Open(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	for i := 1; i <= maxPingAttempts; i++ {
		if err = db.Ping(); err == nil {
			log.Printf("Connected to MySQL at %s:%s", cfg.DBHost, cfg.DBPort)
			return db, nil
		}
		log.Printf("Database connection attempt %d/%d failed: %v", i, maxPingAttempts, err)
		time.Sleep(2 * time.Second)
	}
	_ = db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxPingAttempts, err)
}

var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			suspended BOOLEAN NOT NULL DEFAULT FALSE,
			suspension_reason VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`},
	{"products", `
		CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			original_price DECIMAL(10,2) NOT NULL DEFAULT 0,
			discount INT NOT NULL DEFAULT 0,
			image VARCHAR(512) NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			features JSON NULL,
			category VARCHAR(64) NOT NULL,
			INDEX idx_category (category)
		)`},
	{"orders", `
		CREATE TABLE IF NOT EXISTS orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			reference VARCHAR(16) NOT NULL,
			total DECIMAL(12,2) NOT NULL,
			status VARCHAR(16) NOT NULL,
			payment_method VARCHAR(32) NOT NULL,
			customer_info JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_user_id (user_id),
			INDEX idx_reference (reference)
		)`},
	{"order_items", `
		CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			product_id VARCHAR(64) NOT NULL,
			product_name VARCHAR(255) NOT NULL,
			description VARCHAR(255) NOT NULL DEFAULT '',
			quantity INT NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		)`},
	{"ticket_submissions", `
		CREATE TABLE IF NOT EXISTS ticket_submissions (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			ticket_type VARCHAR(64) NOT NULL DEFAULT '',
			code VARCHAR(128) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		)`},
}

// InitSchema creates the tables if they do not exist yet.
func InitSchema(db *sql.DB) error {
	for _, table := range schema {
		if _, err := db.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
		log.Printf("%s table ready", table.name)
	}
	return nil
}
