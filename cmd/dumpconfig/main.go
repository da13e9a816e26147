package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/ncecere/spendwatch/internal/config"
)

// dumpconfig prints the merged configuration with secrets masked.
func main() {
	configFile := flag.String("config", "", "path to config file")
	envFile := flag.String("env", "", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg.Redacted()); err != nil {
		log.Fatalf("encode config: %v", err)
	}
}
