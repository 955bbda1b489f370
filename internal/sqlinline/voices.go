package sqlinline

const QInsertVoice = `--sql 5c2d9e81-7b44-4a6f-8e1c-2f9a0b3d6c57
insert into voices (id, name, voice_id, created_at)
values (gen_random_uuid(), $1::text, $2::text, now())
returning id::text, name, voice_id, created_at;
`

const QListVoices = `--sql 9e4a1c36-0d8b-4f72-b5e9-3a6c7d2f1b08
select id::text, name, voice_id, created_at
from voices
order by created_at asc, name asc;
`
