package main

import "momo/cmd"

// @title MoMo 交易记录 API
// @version 1.0
// @description 移动钱包交易导入、查找与带审计的访问接口
// @host localhost:8000
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cmd.Execute()
}
