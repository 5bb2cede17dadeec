package service

import (
	"errors"
	"fmt"
	"io"
	"time"

	"momo/config"

	"gopkg.in/gomail.v2"
)

// ErrEmailDisabled 未启用邮件服务
var ErrEmailDisabled = errors.New("邮件服务未启用，请配置 email.enabled=true")

// EmailService 邮件服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendReport 以附件形式发送报表给配置的收件人（to 为空时）
func (s *EmailService) SendReport(to []string, filename string, summary ReportSummary, report []byte) error {
	if !s.cfg.Enabled {
		return ErrEmailDisabled
	}
	if len(to) == 0 {
		to = s.cfg.To
	}
	if len(to) == 0 {
		return errors.New("没有收件人")
	}
	m := s.buildReportMessage(to, filename, summary, report)
	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

// buildReportMessage 构造带报表附件的邮件
func (s *EmailService) buildReportMessage(to []string, filename string, summary ReportSummary, report []byte) *gomail.Message {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(from, "MoMo Tracker"))
	m.SetHeader("To", to...)
	m.SetHeader("Subject", "【MoMo】审计报表 "+summary.GeneratedAt.Format(time.DateOnly))
	m.SetBody("text/html", s.generateReportBody(summary))
	m.Attach(filename, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(report)
		return err
	}))
	return m
}

// generateReportBody 生成报表邮件正文
func (s *EmailService) generateReportBody(summary ReportSummary) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>审计报表</h2>
    <p>生成时间：%s</p>
    <p>审计记录：<strong>%d</strong> 条</p>
    <p>交易记录：<strong>%d</strong> 条</p>
    <p style="color: #666;">明细见附件。此邮件由系统自动发送，请勿回复。</p>
</body>
</html>
`, summary.GeneratedAt.Format(time.DateTime), summary.AuditEntries, summary.Transactions)
}
