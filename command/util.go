package command

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"useradmin/config"
	"useradmin/db"
)

type environmentKey struct{}

// environment is what PersistentPreRunE resolves for the sub-commands.
type environment struct {
	cfg *config.Config
	log zerolog.Logger
}

func fromContext(ctx context.Context) (*environment, error) {
	env, ok := ctx.Value(environmentKey{}).(*environment)
	if !ok {
		return nil, errors.New("configuration resolution failed")
	}
	return env, nil
}

// openDatabase connects to the configured database. Migrations are applied
// when auto_migrate is configured or forceMigrate is set.
func openDatabase(ctx context.Context, forceMigrate bool) (*environment, *sql.DB, error) {
	env, err := fromContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	handle, err := db.Open(ctx, env.cfg.DBDriver, env.cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	if forceMigrate || env.cfg.AutoMigrate {
		if err := db.Migrate(ctx, handle, env.cfg.DBDriver, env.log); err != nil {
			return nil, nil, errors.Join(err, handle.Close())
		}
	}
	return env, handle, nil
}

// prompt writes msg to stderr when in is a terminal and reads one line.
// Masked input is not echoed.
func prompt(in io.Reader, stderr io.Writer, msg string, mask bool) ([]byte, error) {
	f, isFile := in.(*os.File)
	tty := isFile && term.IsTerminal(int(f.Fd()))
	if tty {
		if _, err := io.WriteString(stderr, msg); err != nil {
			return nil, err
		}
		if mask {
			line, err := term.ReadPassword(int(f.Fd()))
			io.WriteString(stderr, "\n")
			return line, err
		}
	}
	return readLine(in)
}

// readLine reads up to the next newline one byte at a time, so nothing past
// the line is consumed from in.
func readLine(in io.Reader) ([]byte, error) {
	var buf [1]byte
	var ret []byte

	for {
		n, err := in.Read(buf[:])
		if n > 0 {
			switch buf[0] {
			case '\n':
				return ret, nil
			case '\r':
			default:
				ret = append(ret, buf[0])
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(ret) > 0 {
				return ret, nil
			}
			return ret, err
		}
	}
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-dev"
	}
	ver := "unknown"
	dirty := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			ver = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if dirty {
		ver += "-dev"
	}
	return ver
}
