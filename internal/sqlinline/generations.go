package sqlinline

const QInsertGeneration = `--sql 0b6f4a57-2c1e-4f3b-9a0d-6e7c5b4a3f21
insert into generations (
    id, voice_id, name, text_prompt,
    generated_video_url, generated_image_url, generated_audio_url, created_at
)
values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::text, $5::text, $5::text, now());
`
