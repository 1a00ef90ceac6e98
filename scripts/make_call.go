// Command make_call places an outbound test call through the Twilio media
// transport configured in a lisan config file.
//
//	go run ./scripts/make_call.go -config=lisan.yaml -from=+123 -to=+456
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/andratama/lisan/pkg/configutil"
	"github.com/andratama/lisan/pkg/lisan"
	"github.com/andratama/lisan/pkg/transports/twiliomedia"
)

type twilioSettings struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	PublicURL  string `mapstructure:"public_url"`
	ServerAddr string `mapstructure:"server_addr"`
	VoicePath  string `mapstructure:"voice_path"`
}

func main() {
	configPath := flag.String("config", "lisan.yaml", "")
	from := flag.String("from", "", "")
	to := flag.String("to", "", "")
	flag.Parse()
	if *from == "" || *to == "" {
		fmt.Println("usage: make_call -from=+123 -to=+456 [-config=...]")
		os.Exit(1)
	}

	cfg, err := lisan.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	var settings twilioSettings
	if err := configutil.DecodeSettings(cfg.Transport.Settings, &settings); err != nil {
		fmt.Println("settings error:", err)
		os.Exit(1)
	}

	dialer := twiliomedia.NewDialer(twiliomedia.Config{
		AccountSID: settings.AccountSID,
		AuthToken:  settings.AuthToken,
		PublicURL:  settings.PublicURL,
		ServerAddr: settings.ServerAddr,
		VoicePath:  settings.VoicePath,
	})
	callSID, err := dialer.Dial(context.Background(), *to, *from)
	if err != nil {
		fmt.Println("call error:", err)
		os.Exit(1)
	}
	fmt.Println("call_sid:", callSID)
}
