package models

// AssetJob 卡图下载任务,入队后不再修改
type AssetJob struct {
	// Key 卡牌键,用作文件名
	Key string

	// URL 卡图地址
	URL string
}

// String 用于日志
func (j AssetJob) String() string {
	return j.Key + " <" + j.URL + ">"
}
