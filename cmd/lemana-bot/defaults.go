package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.skip_pending", true)

	// Questionnaire
	viper.SetDefault("timezone", "Europe/Samara")
	viper.SetDefault("sessions.file", "sessions.json")
	viper.SetDefault("questions.file", "")

	// Spreadsheet
	viper.SetDefault("sheets.spreadsheet_id", "")
	viper.SetDefault("sheets.worksheet", "data_bot")
	viper.SetDefault("sheets.credentials_file", "creds.json")

	// Outbound retries
	viper.SetDefault("retry.append_attempts", 3)
	viper.SetDefault("retry.append_base_delay", 500*time.Millisecond)
	viper.SetDefault("retry.send_attempts", 2)
	viper.SetDefault("retry.send_base_delay", 300*time.Millisecond)
}
