package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
)

const (
	PostgresImage = "postgres:17-alpine"
	MySQLImage    = "mysql:8.4"

	testDatabase = "test_data"
	testUser     = "ekaya"
	testPassword = "test_password"
)

// TestDB is a shared database container seeded with the fixture schema.
type TestDB struct {
	Container  testcontainers.Container
	Descriptor datasource.ConnectionDescriptor
}

type sharedDB struct {
	once sync.Once
	db   *TestDB
	err  error
}

var (
	sharedPostgres sharedDB
	sharedMySQL    sharedDB
)

// postgresFixture is the schema every PostgreSQL integration test sees.
var postgresFixture = []string{
	`CREATE TABLE customers (
		id    serial PRIMARY KEY,
		email text NOT NULL UNIQUE
	)`,
	`CREATE TABLE orders (
		id          serial PRIMARY KEY,
		customer_id integer NOT NULL REFERENCES customers(id),
		total       numeric(10,2) DEFAULT 0,
		external_id uuid
	)`,
	`CREATE INDEX idx_orders_customer_total ON orders (customer_id, total)`,
	`INSERT INTO customers (email) VALUES ('a@example.com'), ('b@example.com')`,
	`INSERT INTO orders (customer_id, total, external_id) VALUES
		(1, 10.50, '6f1c2a7e-8d0b-4c55-9f3e-2a1b0c9d8e7f'),
		(1, 250.00, NULL),
		(2, 99.99, NULL)`,
	`CREATE VIEW big_orders AS SELECT id, total FROM orders WHERE total > 100`,
	`CREATE FUNCTION order_count(cust integer) RETURNS bigint
		LANGUAGE sql AS $$ SELECT count(*) FROM orders WHERE customer_id = cust $$`,
	`CREATE PROCEDURE copy_value(IN src integer, INOUT dst integer)
		LANGUAGE plpgsql AS $$ BEGIN dst := src; END $$`,
}

// mysqlFixture mirrors postgresFixture in MySQL dialect.
var mysqlFixture = []string{
	`CREATE TABLE customers (
		id    INT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE
	)`,
	`CREATE TABLE orders (
		id          INT AUTO_INCREMENT PRIMARY KEY,
		customer_id INT NOT NULL,
		total       DECIMAL(10,2) DEFAULT 0,
		CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES customers(id)
	)`,
	`CREATE INDEX idx_orders_customer_total ON orders (customer_id, total)`,
	`INSERT INTO customers (email) VALUES ('a@example.com'), ('b@example.com')`,
	`INSERT INTO orders (customer_id, total) VALUES (1, 10.50), (1, 250.00), (2, 99.99)`,
	`CREATE VIEW big_orders AS SELECT id, total FROM orders WHERE total > 100`,
	`CREATE FUNCTION order_count(cust INT) RETURNS INT DETERMINISTIC READS SQL DATA
		RETURN (SELECT COUNT(*) FROM orders WHERE customer_id = cust)`,
	`CREATE PROCEDURE copy_value(IN src INT, OUT dst INT) BEGIN SET dst = src; END`,
}

// GetPostgresDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetPostgresDB(t *testing.T) *TestDB {
	t.Helper()
	return sharedPostgres.get(t, setupPostgres)
}

// GetMySQLDB returns a shared MySQL container for integration tests.
func GetMySQLDB(t *testing.T) *TestDB {
	t.Helper()
	return sharedMySQL.get(t, setupMySQL)
}

func (s *sharedDB) get(t *testing.T, setup func(ctx context.Context) (*TestDB, error)) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	s.once.Do(func() {
		s.db, s.err = setup(context.Background())
	})
	if s.err != nil {
		t.Fatalf("Failed to setup test database: %v", s.err)
	}
	return s.db
}

func setupPostgres(ctx context.Context) (*TestDB, error) {
	container, desc, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432", datasource.EnginePostgres)
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		testUser, testPassword, desc.Host, desc.Port, testDatabase)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := waitFor(func() error { return pool.Ping(ctx) }); err != nil {
		return nil, fmt.Errorf("postgres never became reachable: %w", err)
	}
	for _, stmt := range postgresFixture {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to seed postgres: %w", err)
		}
	}

	return &TestDB{Container: container, Descriptor: desc}, nil
}

func setupMySQL(ctx context.Context) (*TestDB, error) {
	container, desc, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        MySQLImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      testDatabase,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
			"MYSQL_ROOT_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(120 * time.Second),
	}, "3306", datasource.EngineMySQL)
	if err != nil {
		return nil, err
	}

	// Creating routines needs root while binary logging is on.
	cfg := gomysql.NewConfig()
	cfg.User = "root"
	cfg.Passwd = testPassword
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", desc.Host, desc.Port)
	cfg.DBName = testDatabase

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	defer db.Close()

	if err := waitFor(func() error { return db.PingContext(ctx) }); err != nil {
		return nil, fmt.Errorf("mysql never became reachable: %w", err)
	}
	for _, stmt := range mysqlFixture {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to seed mysql: %w", err)
		}
	}

	return &TestDB{Container: container, Descriptor: desc}, nil
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port string, engine datasource.EngineKind) (testcontainers.Container, datasource.ConnectionDescriptor, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, datasource.ConnectionDescriptor{}, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, datasource.ConnectionDescriptor{}, fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return nil, datasource.ConnectionDescriptor{}, fmt.Errorf("failed to get container port: %w", err)
	}
	portNum, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return nil, datasource.ConnectionDescriptor{}, fmt.Errorf("invalid mapped port %q: %w", mapped.Port(), err)
	}

	return container, datasource.ConnectionDescriptor{
		ID:       string(engine) + "-test",
		Name:     string(engine) + " test container",
		Type:     engine,
		Host:     host,
		Port:     portNum,
		Database: testDatabase,
		Username: testUser,
		Password: testPassword,
	}, nil
}

// waitFor retries fn for up to five seconds.
func waitFor(fn func() error) error {
	var err error
	for range 10 {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return err
}
