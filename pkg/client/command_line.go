package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taxifare/fareops/internal/common/config"
)

// Environment variables set by the platform on pipeline compute.
var environmentBindings = map[string][]string{
	"subscriptionId":                 {"AZUREML_ARM_SUBSCRIPTION", "FAREOPS_SUBSCRIPTION_ID"},
	"resourceGroup":                  {"AZUREML_ARM_RESOURCEGROUP", "FAREOPS_RESOURCE_GROUP"},
	"workspaceName":                  {"AZUREML_ARM_WORKSPACE_NAME", "FAREOPS_WORKSPACE_NAME"},
	"registryResourceGroup":          {"FAREOPS_REGISTRY_RESOURCE_GROUP"},
	"managementUrl":                  {"FAREOPS_MANAGEMENT_URL"},
	"accessToken":                    {"FAREOPS_ACCESS_TOKEN"},
	"authMethod":                     {"FAREOPS_AUTH_METHOD"},
	"managedIdentity.clientId":       {"DEFAULT_IDENTITY_CLIENT_ID"},
	"clientCredentials.tenantId":     {"AZURE_TENANT_ID"},
	"clientCredentials.clientId":     {"AZURE_CLIENT_ID"},
	"clientCredentials.clientSecret": {"AZURE_CLIENT_SECRET"},
}

func AddApiConnectionCommandlineArgs(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("managementUrl", DefaultManagementUrl, "specify the management API url")
	rootCmd.PersistentFlags().String("subscriptionId", "", "subscription holding the workspace")
	rootCmd.PersistentFlags().String("resourceGroup", "", "resource group holding the workspace")
	rootCmd.PersistentFlags().String("workspaceName", "", "workspace name")
	rootCmd.PersistentFlags().String("authMethod", "", "authentication method: managedIdentity, clientCredentials, token or none (default: detect)")
	for _, name := range []string{"managementUrl", "subscriptionId", "resourceGroup", "workspaceName", "authMethod"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func bindEnvironment() error {
	for key, envVars := range environmentBindings {
		args := append([]string{key}, envVars...)
		if err := viper.BindEnv(args...); err != nil {
			return errors.WithStack(err)
		}
	}
	viper.AutomaticEnv()
	return nil
}

// LoadCommandlineArgsFromConfigFile reads defaults shipped next to the executable, then
// cfgFile (or $HOME/.fareopsctl.yaml) and the environment.
func LoadCommandlineArgsFromConfigFile(cfgFile string) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error finding executable path: %s", err)
	}
	viper.SetConfigFile(filepath.Join(filepath.Dir(exePath), "fareopsctl-defaults.yaml"))
	if err := viper.ReadInConfig(); err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
		case *os.PathError:
			// No default config is fine
		default:
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error reading config file %s: %s", viper.ConfigFileUsed(), err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error getting user home directory: %s", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".fareopsctl")
	}

	if err := bindEnvironment(); err != nil {
		return err
	}

	if err := viper.MergeInConfig(); err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			// Only occurs when the default $HOME/.fareopsctl file is absent, which is fine
		default:
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error reading config file %s: %s", viper.ConfigFileUsed(), err)
		}
	}
	return nil
}

// ExtractCommandlineApiConnectionDetails decodes the merged flag, environment and config
// file settings.
func ExtractCommandlineApiConnectionDetails() (*ApiConnectionDetails, error) {
	apiConnectionDetails := &ApiConnectionDetails{}
	if err := viper.Unmarshal(apiConnectionDetails, config.CustomHooks...); err != nil {
		return nil, errors.Wrap(err, "error decoding connection settings")
	}
	return apiConnectionDetails, nil
}
