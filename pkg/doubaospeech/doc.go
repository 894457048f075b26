// Package doubaospeech 提供豆包语音 API 的 Go 实现
//
// ttsd 只使用流式语音合成（TTS v2）这一个子集：其余产品线（ASR、声音复刻、
// 会议转写、播客、同声传译、字幕提取、控制台管理）不在调度器的范围内，
// 对应的客户端代码已被移除。
//
// # 快速开始
//
// 创建客户端：
//
//	client := doubaospeech.NewClient("your_app_id",
//	    doubaospeech.WithV2APIKey("your_access_key", "your_app_key"),
//	    doubaospeech.WithResourceID(doubaospeech.ResourceTTSV2),
//	)
//
// 流式语音合成：
//
//	for chunk, err := range client.TTSV2.Stream(ctx, req) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // 处理 chunk.Audio
//	}
//
// # 认证方式
//
// V2 接口使用 Access Key / App Key 对：
//
//	client := doubaospeech.NewClient(appID, doubaospeech.WithV2APIKey(accessKey, appKey))
//
// # 错误处理
//
// 所有方法返回的错误都可以转换为 *Error 类型：
//
//	if err != nil {
//	    if e, ok := doubaospeech.AsError(err); ok {
//	        if e.IsRateLimit() {
//	            // 处理限流
//	        }
//	    }
//	}
package doubaospeech
