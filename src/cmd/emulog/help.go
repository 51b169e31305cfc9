// FILE: src/cmd/emulog/help.go
package main

const helpText = `emulog: a leveled, source-aware logging facility for emulators.

Usage:
  emulog [command] [options]
  emulog [options] [--key=value ...]

Commands:
  hash                     Generate HTTP backend credentials
  version                  Display version information

Application Control:
  -c, --config <path>      Path to configuration file (default: ~/.config/emulog.toml)
  -h, --help               Display this help message and exit
  -v, --version            Display version information and exit
  -q, --quiet              Suppress all console output, including errors
      --disable-status-reporter  Disable the periodic status reporter

Signals:
  SIGUSR1                  Toggle synchronous logging
  SIGUSR2                  Reset every backend to its initial level
  SIGHUP                   Flush all backends
  SIGINT, SIGTERM          Flush, dispose and exit

Configuration Sources (Precedence: CLI > Env > File > Defaults):
  --facility.synchronous=true     CLI override of any config key
  EMULOG_FACILITY_SYNCHRONOUS     Environment override of the same key
  EMULOG_CONFIG_FILE              Config file path
  EMULOG_CONFIG_DIR               Config directory
  EMULOG_DISABLE_STATUS_REPORTER  Disable periodic status reports (set to 1)

Examples:
  # Hash a password for the HTTP backend
  emulog hash -u admin

  # Log an emulator's stdout, synchronously
  emulator | emulog --facility.synchronous=true

  # Custom config with a debug diagnostics log
  emulog -c /etc/emulog/board.toml --logging.level=debug
`
