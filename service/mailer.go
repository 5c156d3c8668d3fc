package service

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Mailer struct {
	Host     string
	Port     int
	Sender   string
	Password string
}

func NewMailer() *Mailer {
	return &Mailer{
		Host:     viper.GetString("mail.host"),
		Port:     viper.GetInt("mail.port"),
		Sender:   viper.GetString("mail.sender"),
		Password: viper.GetString("mail.password"),
	}
}

// SendCode delivers the one-time login code. Without a configured sender the
// code is only logged, which is enough for local development.
func (m *Mailer) SendCode(sendTo, code string) error {
	if sendTo == m.Sender {
		return errors.New("invalid email address")
	}

	if m.Sender == "" {
		zap.L().Warn("No mail sender configured, logging verification code instead",
			zap.String("email", sendTo),
			zap.String("code", code))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.Sender)
	msg.SetHeader("To", sendTo)
	msg.SetHeader("Subject", "Your S3 storage verification code")
	msg.SetBody("text/plain", fmt.Sprintf("Your verification code: %s\n\nThis code is valid for 15 minutes.", code))

	d := gomail.NewDialer(m.Host, m.Port, m.Sender, m.Password)

	if err := d.DialAndSend(msg); err != nil {
		return err
	}

	return nil
}
