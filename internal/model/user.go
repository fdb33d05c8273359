package model

// User 用户模型，/users 路由直接序列化为 {id,name,address}
type User struct {
	ID      int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name    string `gorm:"type:varchar(128);not null;default:''" json:"name"`
	Address string `gorm:"type:varchar(256);not null;default:''" json:"address"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
