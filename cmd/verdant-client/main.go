package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vivianlazaras/verdant/client"
	"github.com/vivianlazaras/verdant/internal/config"
)

var (
	configPath string
	serverURL  string
	username   string
)

var rootCmd = &cobra.Command{
	Use:   "verdant-client",
	Short: "Verdant OPAQUE login client",
	Long: `verdant-client bootstraps trust in a server's signing key, then
registers or logs in against it using the OPAQUE protocol.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "verdant-client.yaml", "path to the client config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "account username")

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadClientConfig() (*config.ClientConfig, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		cfg = &config.Config{Client: &config.ClientConfig{}}
	}

	if cfg.Client == nil {
		cfg.Client = &config.ClientConfig{}
	}

	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}

	if cfg.Client.ServerURL == "" {
		return nil, fmt.Errorf("no server URL: pass --server or set client.server_url in %s", configPath)
	}

	return cfg.Client, nil
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")

	if term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new account against the server",
	RunE:  runRegister,
}

func runRegister(cmd *cobra.Command, args []string) error {
	clientCfg, err := loadClientConfig()
	if err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("--username is required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	bootstrap := client.NewBootstrap(clientCfg.BootstrapTimeout)
	_, keyType, keyfunc, err := bootstrap.Verify(clientCfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	api := client.NewAPIClient(clientCfg.ServerURL, clientCfg.BootstrapTimeout, keyType, keyfunc, nil)

	serverPublicKey, err := api.Register(username, password)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	fmt.Printf("registered %s against %s (server AKE key %s)\n",
		username, clientCfg.ServerURL, base64.StdEncoding.EncodeToString(serverPublicKey.Encode()))

	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print the issued bearer token",
	RunE:  runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	clientCfg, err := loadClientConfig()
	if err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("--username is required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	bootstrap := client.NewBootstrap(clientCfg.BootstrapTimeout)
	pub, keyType, keyfunc, err := bootstrap.Verify(clientCfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	api := client.NewAPIClient(clientCfg.ServerURL, clientCfg.BootstrapTimeout, keyType, keyfunc, nil)

	token, err := api.Login(username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	out := map[string]string{
		"token":     token,
		"signed_by": fmt.Sprintf("%T", pub),
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))

	return nil
}
