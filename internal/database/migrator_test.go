package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const repoMigrationsPath = "../../db/migrations"

func TestMigrationRunner(t *testing.T) {
	suite.Run(t, new(MigrationRunnerSuite))
}

type MigrationRunnerSuite struct {
	suite.Suite
	db     *sql.DB
	mock   sqlmock.Sqlmock
	logger *slog.Logger
}

func (s *MigrationRunnerSuite) SetupTest() {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	s.Require().NoError(err)
	s.db = db
	s.mock = mock
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	originalRetries, originalInterval := maxRetries, retryInterval
	maxRetries, retryInterval = 3, 10*time.Millisecond
	s.T().Cleanup(func() {
		maxRetries, retryInterval = originalRetries, originalInterval
	})
}

func (s *MigrationRunnerSuite) TearDownTest() {
	s.db.Close()
}

func (s *MigrationRunnerSuite) runner(opts ...MigrationOption) *MigrationRunner {
	return NewMigrationRunner(s.db, append([]MigrationOption{WithLogger(s.logger)}, opts...)...)
}

func (s *MigrationRunnerSuite) seedDir(files map[string]string) string {
	dir := s.T().TempDir()
	for name, content := range files {
		s.Require().NoError(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func (s *MigrationRunnerSuite) TestOptions() {
	defaults := NewMigrationRunner(s.db)
	s.Equal(migrationsPath, defaults.migrationsPath)
	s.Equal(seedsPath, defaults.seedsPath)
	s.False(defaults.seedsEnabled)
	s.NotNil(defaults.logger)

	custom := s.runner(WithMigrationsPath("m"), WithSeedsPath("s"), WithSeeds())
	s.Equal("m", custom.migrationsPath)
	s.Equal("s", custom.seedsPath)
	s.True(custom.seedsEnabled)
	s.Same(s.logger, custom.logger)
}

func (s *MigrationRunnerSuite) TestWaitForDatabase() {
	refused := errors.New("connection refused")

	tests := []struct {
		name    string
		pings   []error
		wantErr string
	}{
		{"ready at once", []error{nil}, ""},
		{"ready after restart", []error{refused, refused, nil}, ""},
		{"never ready", []error{refused, refused, refused}, "database not ready after 3 attempts"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			s.Require().NoError(err)
			defer db.Close()

			for _, ping := range tt.pings {
				mock.ExpectPing().WillReturnError(ping)
			}

			err = NewMigrationRunner(db, WithLogger(s.logger)).WaitForDatabase(context.Background())

			if tt.wantErr == "" {
				s.NoError(err)
			} else {
				s.EqualError(err, tt.wantErr)
			}
			s.NoError(mock.ExpectationsWereMet())
		})
	}
}

func (s *MigrationRunnerSuite) TestWaitForDatabase_StopsWhenContextEnds() {
	retryInterval = time.Second
	s.mock.ExpectPing().WillReturnError(errors.New("starting up"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.runner().WaitForDatabase(ctx)

	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *MigrationRunnerSuite) TestMissingMigrationsDirectory() {
	runner := s.runner(WithMigrationsPath(filepath.Join(s.T().TempDir(), "absent")))

	s.NoError(runner.RunMigrations(), "up skips a missing directory")
	s.ErrorIs(runner.RollbackMigrations(1), ErrMigrationsNotFound)

	_, _, err := runner.GetMigrationStatus()
	s.ErrorIs(err, ErrMigrationsNotFound)
}

func (s *MigrationRunnerSuite) TestRollbackMigrations_RejectsNonPositiveSteps() {
	for _, steps := range []int{0, -2} {
		err := s.runner().RollbackMigrations(steps)
		s.Error(err)
		s.Contains(err.Error(), "must be positive")
	}
}

func (s *MigrationRunnerSuite) TestLoadSeeds_DisabledRunsNothing() {
	s.T().Setenv("SEED_DATABASE", "false")
	dir := s.seedDir(map[string]string{"001_accounts.sql": "INSERT INTO accounts VALUES (1);"})

	s.NoError(s.runner(WithSeedsPath(dir)).LoadSeeds())
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *MigrationRunnerSuite) TestLoadSeeds_EnabledByOption() {
	s.T().Setenv("SEED_DATABASE", "")
	dir := s.seedDir(map[string]string{
		"001_accounts.sql": "INSERT INTO accounts (account_number, username) VALUES ('1460676351', 'tester');",
	})
	s.mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.runner(WithSeedsPath(dir), WithSeeds()).LoadSeeds())
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *MigrationRunnerSuite) TestLoadSeeds_FailingFileIsSkipped() {
	s.T().Setenv("SEED_DATABASE", "true")
	dir := s.seedDir(map[string]string{
		"001_broken.sql":  "INSERT INTO missing_table VALUES (1);",
		"002_entries.sql": "INSERT INTO ledger_entries (entry_type) VALUES ('deposit');",
	})
	s.mock.ExpectExec("INSERT INTO missing_table").WillReturnError(errors.New("relation does not exist"))
	s.mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))

	s.NoError(s.runner(WithSeedsPath(dir)).LoadSeeds())
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *MigrationRunnerSuite) TestLoadSeeds_MissingDirectoryIsSkipped() {
	runner := s.runner(WithSeedsPath(filepath.Join(s.T().TempDir(), "absent")), WithSeeds())
	s.NoError(runner.LoadSeeds())
}

func (s *MigrationRunnerSuite) TestLoadSeeds_UnreadableFile() {
	dir := s.T().TempDir()
	s.Require().NoError(os.Mkdir(filepath.Join(dir, "001_dir.sql"), 0o755))

	err := s.runner(WithSeedsPath(dir), WithSeeds()).LoadSeeds()

	s.Error(err)
	s.Contains(err.Error(), "failed to read seed file")
}

func (s *MigrationRunnerSuite) TestRunMigrationsIfEnabled() {
	s.Run("disabled", func() {
		s.T().Setenv("AUTO_MIGRATE", "false")
		s.NoError(RunMigrationsIfEnabled(s.db))
	})

	s.Run("database never ready", func() {
		s.T().Setenv("AUTO_MIGRATE", "true")
		for i := 0; i < maxRetries; i++ {
			s.mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		}

		err := RunMigrationsIfEnabled(s.db)

		s.Error(err)
		s.Contains(err.Error(), "database readiness check failed")
	})
}

func TestRepositoryMigrations(t *testing.T) {
	ups, err := filepath.Glob(filepath.Join(repoMigrationsPath, "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := os.Stat(down)
		assert.NoError(t, err, "missing down migration for %s", filepath.Base(up))
	}

	accounts, err := os.ReadFile(filepath.Join(repoMigrationsPath, "000001_create_accounts.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(accounts), "balance >= 0")

	entries, err := os.ReadFile(filepath.Join(repoMigrationsPath, "000002_create_ledger_entries.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(entries), "amount > 0")
}
