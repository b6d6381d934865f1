package config

// NotificationEvent 通知事件类型
type NotificationEvent struct {
	Key         string
	Name        string
	Description string
}

var NotificationEvents = []NotificationEvent{
	{
		Key:         "*",
		Name:        "全部事件",
		Description: "订阅所有类型的通知",
	},
	{
		Key:         "backup_success",
		Name:        "备份成功",
		Description: "全量数据备份成功时触发",
	},
	{
		Key:         "backup_failed",
		Name:        "备份失败",
		Description: "全量数据备份失败时触发",
	},
	{
		Key:         "restore_done",
		Name:        "恢复完成",
		Description: "备份恢复执行完成时触发",
	},
	{
		Key:         "restore_failed",
		Name:        "恢复失败",
		Description: "备份恢复失败时触发",
	},
	{
		Key:         "school_created",
		Name:        "学校开通",
		Description: "平台新开通学校租户时触发",
	},
	{
		Key:         "test",
		Name:        "测试消息",
		Description: "测试通知渠道时触发",
	},
}
