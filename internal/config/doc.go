// Package config загружает слоты ботов и настройки.
//
// Источники по убыванию приоритета: флаги командной строки, окружение
// процесса (в него предварительно загружается .env), необязательный YAML
// из --config и встроенные дефолты. Ключи - имена переменных окружения в
// нижнем регистре: server_count, server_id_1, discord_token_1 и т.д.
package config
