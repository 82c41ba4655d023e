package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"southwinds.dev/microkv"
	"southwinds.dev/microkv/audit"
	"southwinds.dev/microkv/persist"
)

var (
	cfgFile   string
	unsafeOff bool // --unsafe: skip the password prompt, operate unencrypted
	debugMode bool
	nsTag     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "microkv",
	Short: "A minimal, encrypted, persistent key-value store",
	Long: `A minimal key-value store persisted to a single file per database.
Values are sealed with XChaCha20-Poly1305 under a password-derived key;
namespaces partition one database into independent logical key spaces.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.microkv.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&unsafeOff, "unsafe", "u", false, "interact with the database without encryption")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "print debug output")
	rootCmd.PersistentFlags().StringVar(&nsTag, "namespace", "", "scope operations to a namespace")

	rootCmd.PersistentFlags().StringP("workspace", "w", "", "workspace directory holding store files")
	rootCmd.PersistentFlags().String("store-type", "", "storage backend type (filesystem, s3)")
	bindFlagOrPanic("workspace.path", "workspace")
	bindFlagOrPanic("store.type", "store-type")

	// Audit flags
	rootCmd.PersistentFlags().Bool("audit", false, "enable audit logging")
	rootCmd.PersistentFlags().String("audit-file", "", "audit log file path")
	bindFlagOrPanic("audit.enabled", "audit")
	bindFlagOrPanic("audit.file_path", "audit-file")

	// S3 flags (for direct CLI usage)
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 endpoint URL")
	rootCmd.PersistentFlags().String("s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket name")
	rootCmd.PersistentFlags().String("s3-prefix", "", "S3 key prefix")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.PersistentFlags().Bool("s3-use-ssl", true, "use SSL for S3 connections")
	bindFlagOrPanic("store.s3.endpoint", "s3-endpoint")
	bindFlagOrPanic("store.s3.region", "s3-region")
	bindFlagOrPanic("store.s3.bucket", "s3-bucket")
	bindFlagOrPanic("store.s3.key_prefix", "s3-prefix")
	bindFlagOrPanic("store.s3.access_key_id", "s3-access-key")
	bindFlagOrPanic("store.s3.secret_access_key", "s3-secret-key")
	bindFlagOrPanic("store.s3.use_ssl", "s3-use-ssl")
}

func bindFlagOrPanic(configKey, flagName string) {
	if err := viper.BindPFlag(configKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".microkv")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("MICROKV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && debugMode {
		log.Printf("using config file %s", viper.ConfigFileUsed())
	}
}

// workspacePath resolves the directory that holds store files.
func workspacePath() string {
	if p := viper.GetString("workspace.path"); p != "" {
		return p
	}
	return microkv.DefaultOptions().BasePath
}

// buildBackend constructs the persistence backend selected by config.
func buildBackend(database string) (persist.Store, error) {
	config := persist.StoreConfig{
		Type:   persist.StoreTypeFileSystem,
		Config: map[string]interface{}{"base_path": workspacePath()},
	}
	if viper.GetString("store.type") == string(persist.StoreTypeS3) {
		config = persist.StoreConfig{
			Type: persist.StoreTypeS3,
			Config: map[string]interface{}{
				"endpoint":          viper.GetString("store.s3.endpoint"),
				"access_key_id":     viper.GetString("store.s3.access_key_id"),
				"secret_access_key": viper.GetString("store.s3.secret_access_key"),
				"use_ssl":           viper.GetBool("store.s3.use_ssl"),
				"bucket":            viper.GetString("store.s3.bucket"),
				"key_prefix":        viper.GetString("store.s3.key_prefix"),
				"region":            viper.GetString("store.s3.region"),
			},
		}
	}
	return persist.NewStore(config, database)
}

// openDatabase opens the named database, creating a fresh one when no
// durable copy exists yet, and attaches the password unless --unsafe is set.
func openDatabase(database string) (*microkv.Store, error) {
	backend, err := buildBackend(database)
	if err != nil {
		return nil, err
	}

	opts := microkv.DefaultOptions()
	opts.BasePath = workspacePath()
	opts.Backend = backend
	if viper.GetBool("audit.enabled") {
		opts.Audit = &audit.Config{
			Enabled:  true,
			Database: database,
			Type:     audit.FileAuditType,
			FilePath: auditFilePath(database),
		}
	}

	exists, err := backend.StateExists()
	if err != nil {
		return nil, err
	}

	var store *microkv.Store
	if exists {
		store, err = microkv.OpenWithOptions(database, opts)
	} else {
		store, err = microkv.NewWithOptions(database, opts)
	}
	if err != nil {
		return nil, err
	}
	if debugMode {
		log.Printf("database %s at %s (memory protection: %s)",
			database, store.Path(), store.MemoryProtection())
	}

	if !unsafeOff {
		password, err := resolvePassword()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store.WithPasswordClear(password)
	}
	return store, nil
}

func auditFilePath(database string) string {
	if p := viper.GetString("audit.file_path"); p != "" {
		return p
	}
	return filepath.Join(workspacePath(), database+".audit.log")
}
