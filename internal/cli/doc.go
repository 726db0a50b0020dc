// Package cli parses the command lines of instance_creation and vkbindgen,
// validates user input and maps usage problems to exit codes. It translates
// flags into the configuration types of internal/app and internal/genconfig.
package cli
