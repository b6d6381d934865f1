package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"school-manager/models"
	"school-manager/tenant"
)

// NotificationService Webhook 通知服务
// schoolID 为空表示平台级事件（备份告警等），只投递到全局渠道；
// 否则投递到该学校的渠道 + 全局渠道
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// SendNotification 发送通知
func (s *NotificationService) SendNotification(schoolID string, eventType, title, content string) error {
	// 渠道表是租户隔离表，通知服务在后台运行，用系统上下文 + 显式过滤来查
	ctx := tenant.WithSystem(context.Background())

	var channels []models.NotificationChannel
	if schoolID != "" {
		s.db.WithContext(ctx).
			Where("(school_id = ? OR school_id = '') AND enabled = ?", schoolID, true).
			Find(&channels)
	} else {
		// 平台级事件只投递全局渠道
		s.db.WithContext(ctx).
			Where("school_id = '' AND enabled = ?", true).
			Find(&channels)
	}

	if len(channels) == 0 {
		log.Printf("没有可用的通知渠道 (school: %q, event: %s)", schoolID, eventType)
		return nil
	}

	// 过滤订阅了该事件的渠道
	subscribed := s.filterChannelsByEvent(channels, eventType)
	if len(subscribed) == 0 {
		return nil
	}

	for _, channel := range subscribed {
		go s.sendToChannel(&channel, eventType, title, content)
	}

	return nil
}

// sendToChannel 发送到指定渠道并记录日志
func (s *NotificationService) sendToChannel(channel *models.NotificationChannel, eventType, title, content string) {
	log.Printf("发送通知到 %s (%s): %s", channel.Name, channel.Type, title)

	var payload interface{}

	switch channel.Type {
	case "wechat":
		payload = s.buildWeChatPayload(title, content)
	case "dingtalk":
		payload = s.buildDingTalkPayload(title, content, channel.Secret)
	case "feishu":
		payload = s.buildFeishuPayload(title, content, channel.Secret)
	case "slack":
		payload = s.buildSlackPayload(title, content)
	default:
		log.Printf("不支持的通知类型: %s", channel.Type)
		return
	}

	err := s.sendWebhook(channel.WebhookURL, payload)

	notifLog := models.NotificationLog{
		ChannelID: channel.ID,
		EventType: eventType,
		Title:     title,
		Content:   content,
		SentAt:    time.Now(),
	}

	if err != nil {
		notifLog.Status = "failed"
		notifLog.Error = err.Error()
		log.Printf("发送通知失败: %v", err)
	} else {
		notifLog.Status = "success"
	}

	s.db.WithContext(tenant.WithSystem(context.Background())).Create(&notifLog)
}

// buildWeChatPayload 构建企业微信消息
func (s *NotificationService) buildWeChatPayload(title, content string) interface{} {
	return map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]interface{}{
			"content": fmt.Sprintf("### %s\n\n"+
				"**时间**: %s\n\n"+
				"%s",
				title,
				time.Now().Format("2006-01-02 15:04:05"),
				content,
			),
		},
	}
}

// buildDingTalkPayload 构建钉钉消息
func (s *NotificationService) buildDingTalkPayload(title, content string, secret string) interface{} {
	timestamp := time.Now().UnixMilli()
	sign := ""

	if secret != "" {
		sign = s.generateDingTalkSign(timestamp, secret)
	}

	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]interface{}{
			"title": title,
			"text": fmt.Sprintf("### %s\n\n"+
				"- **时间**: %s\n\n"+
				"%s",
				title,
				time.Now().Format("2006-01-02 15:04:05"),
				content,
			),
		},
	}

	if sign != "" {
		payload["timestamp"] = timestamp
		payload["sign"] = sign
	}

	return payload
}

// buildFeishuPayload 构建飞书消息
func (s *NotificationService) buildFeishuPayload(title, content string, secret string) interface{} {
	timestamp := time.Now().Unix()
	sign := ""

	if secret != "" {
		sign = s.generateFeishuSign(timestamp, secret)
	}

	payload := map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"content": title,
					"tag":     "plain_text",
				},
				"template": "blue",
			},
			"elements": []map[string]interface{}{
				{
					"tag": "div",
					"text": map[string]interface{}{
						"content": content,
						"tag":     "lark_md",
					},
				},
				{
					"tag": "div",
					"text": map[string]interface{}{
						"content": fmt.Sprintf("⏰ %s", time.Now().Format("2006-01-02 15:04:05")),
						"tag":     "lark_md",
					},
				},
			},
		},
	}

	if sign != "" {
		payload["timestamp"] = fmt.Sprintf("%d", timestamp)
		payload["sign"] = sign
	}

	return payload
}

// buildSlackPayload 构建 Slack 消息
func (s *NotificationService) buildSlackPayload(title, content string) interface{} {
	return map[string]interface{}{
		"text": title,
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type": "plain_text",
					"text": title,
				},
			},
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": content,
				},
			},
			{
				"type": "context",
				"elements": []map[string]interface{}{
					{
						"type": "mrkdwn",
						"text": fmt.Sprintf("⏰ %s", time.Now().Format("2006-01-02 15:04:05")),
					},
				},
			},
		},
	}
}

// sendWebhook 发送 Webhook 请求
func (s *NotificationService) sendWebhook(url string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 {
		return fmt.Errorf("webhook 返回错误: %d, %s", resp.StatusCode, string(body))
	}

	return nil
}

// generateDingTalkSign 生成钉钉签名
func (s *NotificationService) generateDingTalkSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// generateFeishuSign 生成飞书签名
func (s *NotificationService) generateFeishuSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// filterChannelsByEvent 过滤订阅了特定事件的渠道
func (s *NotificationService) filterChannelsByEvent(channels []models.NotificationChannel, eventType string) []models.NotificationChannel {
	result := []models.NotificationChannel{}

	for _, channel := range channels {
		// 如果 events 为空，表示订阅所有事件
		if channel.Events == "" || channel.Events == "[]" {
			result = append(result, channel)
			continue
		}

		var events []string
		if err := json.Unmarshal([]byte(channel.Events), &events); err != nil {
			log.Printf("解析事件列表失败: %v", err)
			continue
		}

		for _, event := range events {
			if event == eventType || event == "*" {
				result = append(result, channel)
				break
			}
		}
	}

	return result
}
