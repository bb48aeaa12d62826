package dotenv

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// EnvKey selects the runtime environment: dev, test or prod.
	EnvKey  = "ZSXQINTEL_ENV"
	ProdEnv = "prod"
	DevEnv  = "dev"
)

// Load loads the .env file following the convention: https://github.com/bkeepers/dotenv#what-other-env-files-can-i-use
// It only need to be called once in main function, other code can use env through os.Getenv('ENV_NAME') during runtime
func LoadDotEnvs() error {
	loadDotEnvs("")
	return nil
}

func loadDotEnvs(rootPath string) {
	env := os.Getenv(EnvKey)
	if env == "" {
		env = DevEnv
	}

	// .env.[runtime_env].local has highest priority, usually contains the cookie and api keys
	godotenv.Load(rootPath + ".env." + env + ".local")
	godotenv.Load(rootPath + ".env.local")
	// .env.[runtime_env] usually contains db connection information
	godotenv.Load(rootPath + ".env." + env)
	// .env usually contains shared variables(which might be overwritten by envs above)
	godotenv.Load(rootPath + ".env")
}

// Have to write this helper function due to a known issue of godotenv
// https://github.com/joho/godotenv/issues/43
// Tests run inside package directories, so walk up to the module root.
func LoadDotEnvsInTests() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
	godotenv.Load(filepath.Join(dir, ".env.test"))
	return nil
}

// IsProdEnv reports whether the process runs with the production env.
func IsProdEnv() bool {
	return os.Getenv(EnvKey) == ProdEnv
}
